package testhelpers

import (
	"bytes"
	"fmt"

	cristalbase64 "github.com/cristalhq/base64"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// EncodeTestVector renders a failing corpus as xz-compressed base64, ready to
// be pasted into a bug report.
func EncodeTestVector(data []byte) string {

	var out bytes.Buffer

	compressor, initErr := xz.WriterConfig{
		Properties: &(lzma.Properties{
			PB: 4,
			LC: 1,
			LP: 3,
		}),
		DictCap:  32 * 1024 * 1024,
		BufSize:  8192,
		CheckSum: xz.CRC32,
	}.NewWriter(&out)

	if initErr != nil {
		logrus.Panicf("Failed to initialize XZ compressor: %s", initErr)
	}

	if _, err := compressor.Write(data); err != nil {
		logrus.Panicf("Unexpected error writing to compressor: %s", err)
	}
	if err := compressor.Close(); err != nil {
		logrus.Panicf("Unexpected error flushing compressor: %s", err)
	}

	return fmt.Sprintf(
		"\nFollows the complete test corpus, decode with: `{some-cli-paste} | base64 --decode | xz -dc | less -S`\n\n%s\n\t",
		cristalbase64.StdEncoding.EncodeToString(out.Bytes()),
	)
}
