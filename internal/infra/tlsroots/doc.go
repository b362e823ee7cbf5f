// Package tlsroots builds the trust store used to reach the contacts api.
//
// The system roots are always included. server.ca_file adds a PEM file, or
// every .pem, .crt and .cer file of a directory, for servers behind a
// private certificate authority.
package tlsroots
