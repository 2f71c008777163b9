// Package logger is a standardized event logging framework for the shell.
//
// Every job launch, reaped child, forwarded signal and failure is recorded as
// one JSON object per line so sessions can be summarized after the fact.
package logger
