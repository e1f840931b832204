// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package config reads and generates the sysdiag key-value config file.
//
// The file is line oriented. Blank lines and lines starting with '#' are
// ignored and every other line is "<key> <value>":
//
//	system_name db1.example.com
//	network     eth0
//	disk        /
//	disk        /home
//	service     sshd
//
// system_name and network keep their last occurrence; disk and service are
// repeatable and keep file order.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
)

// Load reads the config file at path. An unreadable file is an error;
// malformed lines are not, they are returned in File.Warnings.
func Load(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{Path: path}, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	file, err := Parse(f)
	file.Path = path
	if err != nil {
		return file, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return file, nil
}

// Parse reads a config from r.
func Parse(r io.Reader) (File, error) {
	var (
		file   File
		cfg    = &file.Config
		lineNo int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			file.Warnings = multierr.Append(file.Warnings,
				&LineError{Line: lineNo, Text: text, Err: ErrMalformedLine})
			continue
		}

		key, value := fields[0], fields[1]
		switch key {
		case KeySystemName:
			cfg.SystemName = value
		case KeyNetwork:
			cfg.NetworkInterface = value
		case KeyDisk:
			cfg.DiskMountPoints = append(cfg.DiskMountPoints, value)
		case KeyService:
			cfg.ServiceNames = append(cfg.ServiceNames, value)
		default:
			file.Warnings = multierr.Append(file.Warnings,
				&LineError{Line: lineNo, Text: text, Err: ErrUnknownKey})
		}
	}
	if err := scanner.Err(); err != nil {
		return file, err
	}

	return file, nil
}
