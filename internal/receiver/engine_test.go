package receiver

import (
	"encoding/base64"
	"testing"

	"github.com/caesar-go/caesar/internal/transfererrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInviteSplitsOnRightmostHyphen(t *testing.T) {
	secret := []byte("thirty-two-byte-long-secret!!!!")
	require.Len(t, secret, 32)
	encoded := base64.StdEncoding.EncodeToString(secret)

	invite := "abc-def-" + encoded
	roomID, hmacSecret, err := ParseInvite(invite)
	require.NoError(t, err)
	assert.Equal(t, "abc-def", roomID)
	assert.Equal(t, secret, hmacSecret)
}

func TestParseInviteRejectsMissingSeparator(t *testing.T) {
	_, _, err := ParseInvite("noseparator")
	assert.ErrorIs(t, err, transfererrors.ErrBadInvite)
}

func TestParseInviteRejectsBadBase64(t *testing.T) {
	_, _, err := ParseInvite("room-id-not base64!!")
	assert.ErrorIs(t, err, transfererrors.ErrBadInvite)
}

func TestSanitizeNameStripsPathAndUnsafeChars(t *testing.T) {
	assert.Equal(t, "etc_passwd", sanitizeName("../../etc/passwd"))
	assert.Equal(t, "report.final.pdf", sanitizeName("report.final.pdf"))
	assert.Equal(t, "a_b_c", sanitizeName("a b\tc"))
}
