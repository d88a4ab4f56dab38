package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()
	assert.True(t, strings.HasPrefix(info, "rowguard "+Version+" "))
	assert.Contains(t, info, runtime.Version())
	assert.Equal(t, Version, Short())
}
