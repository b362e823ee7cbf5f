// Package confloader loads layered configuration with koanf.
//
// Sources, highest priority first:
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables (PHONEBOOK_ prefix)
//  3. The YAML configuration file
//  4. Defaults already present in the target struct
//
// Watcher reports changes of a configuration file so long-running
// commands can re-apply settings such as the log level.
package confloader
