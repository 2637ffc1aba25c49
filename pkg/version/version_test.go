package version_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/filechanges/pkg/version"
)

func TestString_ContainsVersion(t *testing.T) {
	version.InitBinaryVersion()

	banner := version.String()
	assert.True(t, strings.HasPrefix(banner, "filechanges "+version.Version))
	assert.Contains(t, banner, "commit: "+version.Commit)
	assert.NotEmpty(t, version.Date)
}
