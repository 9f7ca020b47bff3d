package types

import "encoding/binary"

// EncodeClaim produces the canonical byte encoding of a ClaimOfAttendance
// used both for signing and for on-chain transport:
//
//	claimant_account ‖ ceremony_index (LE u32) ‖ meetup_index (LE u64) ‖ n_confirmed (LE u32)
//
// This exact field order and endianness is a consensus parameter: every
// node must derive the same bytes from the same claim, or signature
// verification diverges across the network.
func EncodeClaim(c ClaimOfAttendance) []byte {
	buf := make([]byte, 0, len(c.Claimant)+4+8+4)
	buf = append(buf, c.Claimant[:]...)

	var ceremonyIdx [4]byte
	binary.LittleEndian.PutUint32(ceremonyIdx[:], uint32(c.CeremonyIndex))
	buf = append(buf, ceremonyIdx[:]...)

	var meetupIdx [8]byte
	binary.LittleEndian.PutUint64(meetupIdx[:], c.MeetupIndex)
	buf = append(buf, meetupIdx[:]...)

	var nConfirmed [4]byte
	binary.LittleEndian.PutUint32(nConfirmed[:], c.NumberOfParticipantsConfirmed)
	buf = append(buf, nConfirmed[:]...)

	return buf
}

// EncodeWitness produces the canonical on-chain transport encoding of a
// Witness: claim ‖ signature ‖ signer, in that field order.
func EncodeWitness(w Witness) []byte {
	claimBytes := EncodeClaim(w.Claim)
	buf := make([]byte, 0, len(claimBytes)+len(w.Signature)+len(w.Signer))
	buf = append(buf, claimBytes...)
	buf = append(buf, w.Signature...)
	buf = append(buf, w.Signer[:]...)
	return buf
}
