package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
)

func TestWritePidFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "krishid.pid")
	if err := writePidFile(pidFile, os.Getpid()); err != nil {
		t.Fatalf("writePidFile failed: %v", err)
	}
	b, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if string(b) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file contains %q", b)
	}
}

func TestDaemonArgs(t *testing.T) {
	in := []string{"serve", "--daemonize", "--pidfile", "/old.pid", "--config", "k.toml", "--logfile", "/old.log"}
	got := daemonArgs(in, "/run/krishid.pid", "")
	want := []string{"serve", "--config", "k.toml", "--pidfile", "/run/krishid.pid"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("daemonArgs = %v want %v", got, want)
	}
}
