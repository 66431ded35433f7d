package pdf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFromReader_KeinePDF(t *testing.T) {
	_, err := ParseFromReader(strings.NewReader("das ist keine PDF"), "text.pdf")
	assert.Error(t, err)
}

func TestParseFromReader_LeereEingabe(t *testing.T) {
	_, err := ParseFromReader(strings.NewReader(""), "leer.pdf")
	assert.Error(t, err)
}
