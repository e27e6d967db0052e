package cli

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mbuck21/BOM-Manager/pkg/backend"
	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/diff"
	"github.com/mbuck21/BOM-Manager/pkg/snapshot"
)

// snapshotCommand creates the snapshot command.
func (c *CLI) snapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture and inspect immutable BOM snapshots",
	}
	cmd.AddCommand(c.snapshotCreateCommand())
	cmd.AddCommand(c.snapshotGetCommand())
	cmd.AddCommand(c.snapshotListCommand())
	return cmd
}

func (c *CLI) snapshotCreateCommand() *cobra.Command {
	var label string
	var noDedupe bool
	cmd := &cobra.Command{
		Use:               "create <root>",
		Short:             "Snapshot everything reachable from a part",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeParts,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				res := b.CreateSnapshot(cmd.Context(), args[0], label, !noDedupe)
				return emit(c, res, func(r *snapshot.CreateResult) {
					s := r.Snapshot
					if r.Deduplicated {
						printInfo("Unchanged since %s", StyleValue.Render(s.ID))
					} else {
						printSuccess("Created %s", StyleValue.Render(s.ID))
					}
					printStats(plural(len(s.Parts), "part"), plural(len(s.Relationships), "relationship"), s.Signature[:12])
				})
			})
		},
	}
	cmd.Flags().StringVarP(&label, "label", "l", "", "free-form label")
	cmd.Flags().BoolVar(&noDedupe, "no-dedupe", false, "always create a new snapshot")
	return cmd
}

func (c *CLI) snapshotGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <snapshot-id>",
		Short: "Show a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				return emit(c, b.GetSnapshot(cmd.Context(), args[0]), func(s *bom.Snapshot) {
					printKeyValue("Snapshot", s.ID)
					printKeyValue("Root", s.RootPartNumber)
					printKeyValue("Label", s.Label)
					printKeyValue("Created", formatTime(s.CreatedAt))
					printKeyValue("Signature", s.Signature)
					rows := make([][]string, len(s.Relationships))
					for i, r := range s.Relationships {
						rows[i] = []string{r.Parent, r.Child, formatFloat(r.Qty), r.RelID}
					}
					if len(rows) > 0 {
						printTable([]string{"Parent", "Child", "Qty", "Rel id"}, rows)
					}
					printStats(plural(len(s.Parts), "part"), plural(len(s.Relationships), "relationship"))
				})
			})
		},
	}
}

func (c *CLI) snapshotListCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "list [root]",
		Short:             "List snapshots, oldest first",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: c.completeParts,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				return emit(c, b.ListSnapshots(cmd.Context(), root), func(l backend.SnapshotList) {
					if len(l.Snapshots) == 0 {
						printInfo("No snapshots")
						return
					}
					printTable([]string{"Snapshot", "Root", "Label", "Created", "Parts", "Rels"}, snapshotRows(l.Snapshots))
				})
			})
		},
	}
}

func snapshotRows(ss []bom.SnapshotSummary) [][]string {
	rows := make([][]string, len(ss))
	for i, s := range ss {
		rows[i] = []string{s.ID, s.RootPartNumber, s.Label, formatRelativeTime(s.CreatedAt),
			fmt.Sprint(s.PartCount), fmt.Sprint(s.RelationshipCount)}
	}
	return rows
}

func (c *CLI) diffCommand() *cobra.Command {
	var interactive bool
	var root string
	cmd := &cobra.Command{
		Use:   "diff [snapshot-a snapshot-b]",
		Short: "Compare two snapshots",
		Long: `Compare two snapshots and list added, removed and modified parts and
relationships. With -i, pick the two snapshots interactively.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if interactive {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(b *backend.Backend) error {
				if interactive {
					a, bID, ok, err := c.pickSnapshots(cmd, b, root)
					if err != nil || !ok {
						return err
					}
					args = []string{a, bID}
				}
				return emit(c, b.CompareSnapshots(cmd.Context(), args[0], args[1]), printDiff)
			})
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick snapshots interactively")
	cmd.Flags().StringVar(&root, "root", "", "only offer snapshots of this root (with -i)")
	return cmd
}

// pickSnapshots runs the interactive picker and returns the two chosen ids
// in chronological order. ok is false when the user cancelled.
func (c *CLI) pickSnapshots(cmd *cobra.Command, b *backend.Backend, root string) (a, bID string, ok bool, err error) {
	list := b.ListSnapshots(cmd.Context(), root)
	if !list.OK {
		return "", "", false, emit(c, list, nil)
	}
	if len(list.Data.Snapshots) < 2 {
		printInfo("Need at least two snapshots to compare")
		return "", "", false, nil
	}
	model := NewSnapshotPickerModel(list.Data.Snapshots)
	final, err := tea.NewProgram(model, tea.WithContext(cmd.Context())).Run()
	if err != nil {
		return "", "", false, err
	}
	m := final.(SnapshotPickerModel)
	a, bID, ok = m.Selection()
	if !ok {
		printInfo("Cancelled")
	}
	return a, bID, ok, nil
}

func printDiff(d *diff.Result) {
	printKeyValue("From", d.SnapshotA.ID)
	printKeyValue("To", d.SnapshotB.ID)
	if d.Equal {
		printSuccess("Snapshots are equal")
		return
	}

	var rows [][]string
	pc := d.PartChanges
	for _, p := range pc.Added {
		rows = append(rows, []string{StyleSuccess.Render(iconAdded), "part", p.PartNumber, p.Name})
	}
	for _, p := range pc.Removed {
		rows = append(rows, []string{StyleError.Render(iconRemoved), "part", p.PartNumber, p.Name})
	}
	for _, m := range pc.Modified {
		rows = append(rows, []string{StyleWarning.Render(iconChanged), "part", m.PartNumber, describePartChange(m)})
	}
	rc := d.RelationshipChanges
	for _, r := range rc.Added {
		rows = append(rows, []string{StyleSuccess.Render(iconAdded), "rel", r.RelID, describeRel(r)})
	}
	for _, r := range rc.Removed {
		rows = append(rows, []string{StyleError.Render(iconRemoved), "rel", r.RelID, describeRel(r)})
	}
	for _, m := range rc.Modified {
		rows = append(rows, []string{StyleWarning.Render(iconChanged), "rel", m.RelID, describeRelChange(m)})
	}
	printTable([]string{"", "Kind", "Id", "Change"}, rows)
	printStats(plural(d.ChangeCount(), "change"))
}

func describeRel(r bom.Relationship) string {
	return fmt.Sprintf("%s %s %s ×%s", r.Parent, iconArrow, r.Child, formatFloat(r.Qty))
}

func describePartChange(m diff.PartModification) string {
	var parts []string
	if m.Name != nil {
		parts = append(parts, fmt.Sprintf("name %q %s %q", m.Name.Before, iconArrow, m.Name.After))
	}
	return joinChanges(append(parts, describeAttrChanges(m.Attributes)...))
}

func describeRelChange(m diff.RelationshipModification) string {
	var parts []string
	if m.Parent != nil {
		parts = append(parts, fmt.Sprintf("parent %s %s %s", m.Parent.Before, iconArrow, m.Parent.After))
	}
	if m.Child != nil {
		parts = append(parts, fmt.Sprintf("child %s %s %s", m.Child.Before, iconArrow, m.Child.After))
	}
	if m.Qty != nil {
		parts = append(parts, fmt.Sprintf("qty %s %s %s", formatFloat(m.Qty.Before), iconArrow, formatFloat(m.Qty.After)))
	}
	return joinChanges(append(parts, describeAttrChanges(m.Attributes)...))
}

func describeAttrChanges(a diff.AttributeChanges) []string {
	var out []string
	for _, k := range a.Added.Keys() {
		out = append(out, fmt.Sprintf("+%s=%s", k, a.Added[k]))
	}
	for _, k := range a.Removed.Keys() {
		out = append(out, fmt.Sprintf("-%s", k))
	}
	keys := make([]string, 0, len(a.Modified))
	for k := range a.Modified {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		ch := a.Modified[k]
		out = append(out, fmt.Sprintf("%s %s %s %s", k, ch.Before, iconArrow, ch.After))
	}
	return out
}

func joinChanges(parts []string) string {
	if len(parts) == 0 {
		return "—"
	}
	s := parts[0]
	for _, p := range parts[1:] {
		s += "; " + p
	}
	return s
}
