package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseAddress parses a decimal address or a hexadecimal address prefixed
// with 0x.
func ParseAddress(s string) (uint64, error) {
	s = strings.TrimSpace(s)

	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}

	return strconv.ParseUint(s, 10, 64)
}

// ReadTrace reads one address per line. Text after # is a comment and blank
// lines are skipped.
func ReadTrace(r io.Reader) ([]uint64, error) {
	var addresses []uint64

	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		addr, err := ParseAddress(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid address %q: %w",
				lineNo, line, err)
		}

		addresses = append(addresses, addr)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return addresses, nil
}

func readTraceFile(path string) ([]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	addresses, err := ReadTrace(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return addresses, nil
}

func parseAddressArgs(args []string) ([]uint64, error) {
	addresses := make([]uint64, 0, len(args))

	for _, arg := range args {
		addr, err := ParseAddress(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", arg, err)
		}

		addresses = append(addresses, addr)
	}

	return addresses, nil
}
