// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(log.New(&buf, "", 0))
	defer SetOutput(log.New(&buf, "", log.LstdFlags))

	SetLevel(LevelWarn)
	Infof("hidden")
	Warnf("shown")
	Errorf("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level, got %q", out)
	}
	if !strings.Contains(out, "[WARN] shown") {
		t.Errorf("warn message missing, got %q", out)
	}
	if !strings.Contains(out, "[ERROR] also shown") {
		t.Errorf("error message missing, got %q", out)
	}
}

func TestSetVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(log.New(&buf, "", 0))

	SetVerbose(true)
	Debugf("debug on")
	if !strings.Contains(buf.String(), "debug on") {
		t.Error("debug message missing with verbose enabled")
	}

	buf.Reset()
	SetVerbose(false)
	Debugf("debug off")
	if buf.Len() != 0 {
		t.Errorf("debug message should be filtered, got %q", buf.String())
	}
}
