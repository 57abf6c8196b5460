package attestation

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeLedgerAddress(t *testing.T) {
	id, err := DecodeLedgerAddress(xrpRecipient)
	require.NoError(t, err)
	require.Equal(t, "dabea736c8dad7e024a2c9a6f2a5e665733c7637", hex.EncodeToString(id[:]))
	require.Equal(t, xrpRecipient, EncodeLedgerAddress(id))

	id, err = DecodeLedgerAddress(xrpOwner)
	require.NoError(t, err)
	require.Equal(t, "b5f762798a53d543a014caf8b297cff8f2f937e8", hex.EncodeToString(id[:]))

	var zero [AccountIDLength]byte
	require.Equal(t, "rrrrrrrrrrrrrrrrrrrrrhoLvTp", EncodeLedgerAddress(zero))
}

func TestDecodeLedgerAddressRejects(t *testing.T) {
	for _, address := range []string{
		"",
		"rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTi",
		"rHb9CJAWyB4rj91VRWn96DkukG4bwdtyT",
		"rHb9CJAWyB4rj91VRWn96DkukG4bwdty0h",
		dogeRecipient,
	} {
		require.False(t, ValidLedgerAddress(address), address)
	}
}

func TestOwnerAccountField(t *testing.T) {
	var id [AccountIDLength]byte
	id[0], id[19] = 0xaa, 0xbb
	field := OwnerAccountField(id)
	require.Equal(t, byte(0xbb), field[19])
	require.Equal(t, make([]byte, DigestLength-AccountIDLength), field[AccountIDLength:])

	back, ok := AccountIDFromOwnerField(field)
	require.True(t, ok)
	require.Equal(t, id, back)

	field[31] = 1
	_, ok = AccountIDFromOwnerField(field)
	require.False(t, ok)
}
