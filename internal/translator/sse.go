package translator

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// readEventStream hands the payload of every "data:" line to handle until
// handle reports the provider's end-of-stream marker or the body ends.
// Lines without the prefix (comments, "event:" lines, blanks) are skipped.
func readEventStream(r io.Reader, handle func(data string) (done bool)) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data != "" && handle(data) {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
