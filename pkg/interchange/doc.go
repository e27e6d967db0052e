// Package interchange reads and writes parts and relationships as CSV.
//
// # Import
//
// Parts files need the columns part_number and name; relationship files
// need parent_part_number, child_part_number and qty. Optional reserved
// columns are last_updated (RFC 3339), rel_id (relationships only) and
// attributes_json (a JSON object of scalar attributes). Every other
// non-empty cell becomes an attribute: an "attr__" prefix is stripped from
// the column name and the cell is parsed as a boolean, a number or text.
//
// Parsing never aborts on a bad row. Rows are numbered from 2 (the header
// is row 1) and problems are reported as "Row N: ..." strings so callers
// can apply the good rows and report the rest.
//
// # Export
//
// [WriteParts] and [WriteRelationships] emit the fixed columns, one column
// per whitelisted attribute, and optionally an attributes_json column with
// every attribute.
package interchange
