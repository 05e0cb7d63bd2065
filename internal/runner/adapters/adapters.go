// Package adapters contains the tool adapters that wrap the external
// reconnaissance binaries. Each adapter knows how to build the command
// line for a target under a given job config and how to parse the
// tool's raw stdout into normalized findings.
package adapters

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/reconforge/api/internal/runner"
)

// All returns every built-in adapter for registry construction.
func All() []runner.Adapter {
	return []runner.Adapter{
		&Subfinder{},
		&Amass{},
		&Nmap{},
		&Naabu{},
		&Ffuf{},
		&Waymore{},
		&GetJS{},
		&LinkFinder{},
		&Nuclei{},
		&HTTPX{},
	}
}

// eachLine calls fn for every non-empty trimmed line of raw. Lines
// longer than the scanner default are accepted up to 1 MiB.
func eachLine(raw []byte, fn func(line string)) error {
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fn(line)
	}
	return sc.Err()
}

func itoa(n int) string { return strconv.Itoa(n) }
