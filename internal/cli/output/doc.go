// Package output renders phonebook-cli results.
//
// A Formatter writes any value as a table, JSON or YAML. Tables are derived
// from struct fields by reflection: the json tag names the column, a
// `table:"-"` tag hides the field and `table:"wide"` shows it only with
// --wide. Commands that need a custom layout build a *Table directly.
//
// ProgressBar reports byte counts for backup transfers on stderr.
package output
