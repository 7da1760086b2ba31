package object

// CommitHash returns the digest a commit is stored under.
func CommitHash(c *CommitObj) Hash {
	return HashObject(TypeCommit, MarshalCommit(c))
}

// SigningPayload returns the canonical bytes covered by a commit signature:
// the serialized commit with the signature header left out.
func SigningPayload(c *CommitObj) []byte {
	if c == nil {
		return nil
	}
	unsigned := *c
	unsigned.Signature = ""
	return MarshalCommit(&unsigned)
}
