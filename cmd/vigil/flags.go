package main

import "time"

// Flag structs decouple cobra from logic for testing.

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	ConfigPath string
	Daemonize  bool
	LogFile    string
}

// StatusFlags holds flags for the status command.
type StatusFlags struct {
	Name       string
	Watch      bool
	Interval   time.Duration
	APIUrl     string
	APITimeout time.Duration
}

// ServiceFlags holds flags for commands targeting one service (clear, check).
type ServiceFlags struct {
	Name       string
	APIUrl     string
	APITimeout time.Duration
}

// ValidateFlags holds flags for the validate command.
type ValidateFlags struct {
	ConfigPath string
}
