// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-lambda-go/events"
	"github.com/poiesic/docroute/cloud"
	"github.com/poiesic/docroute/core"
)

// maxLineSize bounds a single JSON line.
const maxLineSize = 1 << 20

// ReadEvents decodes one completion event per line. Blank lines and lines
// starting with '#' are skipped. A line carrying a "detail" member is decoded
// as an EventBridge envelope.
func ReadEvents(r io.Reader) ([]*core.CompletionEvent, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var out []*core.CompletionEvent
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		event, err := decodeLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return out, nil
}

func decodeLine(line []byte) (*core.CompletionEvent, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, err
	}
	if len(probe) == 0 {
		return nil, ErrEmptyEvent
	}

	if _, ok := probe["detail"]; ok {
		var envelope events.CloudWatchEvent
		if err := json.Unmarshal(line, &envelope); err != nil {
			return nil, err
		}
		return cloud.CompletionEventFromCloudWatch(envelope)
	}

	var event core.CompletionEvent
	if err := json.Unmarshal(line, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
