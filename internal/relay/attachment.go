package relay

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"chatrelay/pkg/types"
)

// stageAttachment decodes an inline attachment and derives its stored name:
// the current unix-nano timestamp plus the extension taken from the last
// dot-separated segment of the client file name, sniffed from the bytes when
// the name carries no extension.
func stageAttachment(f *types.Attachment) (string, []byte, error) {
	payload := f.Data
	// A data-URI prefix ("data:image/png;base64,") is not part of the
	// encoded payload.
	if strings.HasPrefix(payload, "data:") {
		if idx := strings.Index(payload, ","); idx >= 0 {
			payload = payload[idx+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, ErrInvalidAttachment
	}

	name := fmt.Sprintf("%d%s", time.Now().UnixNano(), extension(f.Name, data))
	return name, data, nil
}

func extension(name string, data []byte) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 && idx < len(name)-1 {
		return name[idx:]
	}
	return mimetype.Detect(data).Extension()
}
