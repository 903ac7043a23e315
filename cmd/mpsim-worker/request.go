package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/example/mpsim/internal/cmdscript"
	"github.com/example/mpsim/internal/engine"
)

// decodeRequest parses a worker request body: a small header block (one
// "key: value" directive per line — scenario, trial, startYear, endYear)
// followed by a blank line and the same line-oriented command script
// cmd/mpsim reads, exactly the shape a remote host assembles before
// publishing to the worker's NATS subject.
func decodeRequest(body []byte) (commands []engine.Command, scenario string, trial, startYear, endYear int, err error) {
	headerText, scriptText, found := strings.Cut(string(body), "\n\n")
	if !found {
		return nil, "", 0, 0, 0, fmt.Errorf("request missing blank line separating header from script")
	}

	scenario = "default"
	for i, raw := range strings.Split(headerText, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, "", 0, 0, 0, fmt.Errorf("header line %d: expected \"key: value\", got %q", i+1, raw)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "scenario":
			scenario = value
		case "trial":
			trial, err = strconv.Atoi(value)
		case "startYear":
			startYear, err = strconv.Atoi(value)
		case "endYear":
			endYear, err = strconv.Atoi(value)
		default:
			err = fmt.Errorf("unknown header key %q", key)
		}
		if err != nil {
			return nil, "", 0, 0, 0, fmt.Errorf("header line %d: %w", i+1, err)
		}
	}

	commands, err = cmdscript.Parse(scriptText)
	if err != nil {
		return nil, "", 0, 0, 0, err
	}
	return commands, scenario, trial, startYear, endYear, nil
}
