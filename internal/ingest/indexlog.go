// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var indexLogMu sync.Mutex

// AppendIndexLog appends a diagnostic line to <dotDir>/index.log: an
// RFC3339 timestamp followed by message. A no-op when dotDir is empty.
// Reindex and watch events are duplicated to stderr so they are visible
// without tailing the log file.
func AppendIndexLog(dotDir, message string) {
	if dotDir == "" {
		return
	}
	indexLogMu.Lock()
	defer indexLogMu.Unlock()
	if err := os.MkdirAll(dotDir, 0750); err != nil {
		return
	}
	logPath := filepath.Join(dotDir, "index.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return
	}
	line := fmt.Sprintf("%s %s\n", time.Now().Format(time.RFC3339), message)
	_, _ = f.WriteString(line)
	_ = f.Close()

	if isNotableEvent(message) {
		_, _ = os.Stderr.WriteString("[tsgraph index.log] " + message + "\n")
	}
}

func isNotableEvent(message string) bool {
	return strings.HasPrefix(message, "reindex") || strings.HasPrefix(message, "watch")
}
