// Package repl implements the phonebook-cli shell.
//
// Each input line is split into arguments with shell quoting rules and
// handed to an Executor, normally the command app bound to a shared
// runtime. exit, quit and history are handled here. Unknown command words
// get suggestions from the Completer. History is kept in
// ~/.phonebook/history without lines that carry a password.
package repl
