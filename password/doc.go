// Package password implements password hashing and verification with
// Argon2id.
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification reads parameters from the stored hash, so hashes produced
// with older cost settings keep verifying after an upgrade;
// [Argon2.NeedsUpgrade] reports when a re-hash on next login is warranted.
//
// The package owns hashing only. Password policy beyond byte-length bounds
// belongs to the credential store using it.
package password
