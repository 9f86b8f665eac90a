// Package filerelay implements a point-to-point encrypted file transfer
// service for institutional back-office use: two long-running peers, an
// acceptor and a connector, exchange exactly one hybrid-encrypted message
// block per TCP connection.
//
// # Quick Start
//
// Running the acceptor and delivering a file from the connector side:
//
//	import "github.com/blockrelay/filerelay/pkg/transfer"
//
//	// Acceptor
//	listener, _ := transfer.Listen("tcp", ":8080", transfer.Config{
//		KeyPair: privateKey,
//		Store:   authorizedKeys,
//	})
//	_ = listener.Serve(func(session *transfer.Session, conn net.Conn) {
//		_ = transfer.Receive(conn, session, sink, "")
//	})
//
//	// Connector
//	session, conn, _ := transfer.Dial("tcp", "acceptor:8080", transfer.DialConfig{
//		LocalPrivateKey: privateKey,
//		ConnectKey:      "branch-042",
//	})
//	_ = transfer.Send(conn, session, fileBytes, "statement.csv")
//
// For the low-level primitives:
//
//	import "github.com/blockrelay/filerelay/pkg/crypto"
//
//	keyPair, _ := crypto.GenerateKeyPair()
//	ciphertext, _ := crypto.Seal(aesKey, nonce, plaintext)
//	plaintext, _ := crypto.Open(aesKey, nonce, ciphertext)
//
// # Package Structure
//
//   - pkg/crypto: RSA-2048, AES-256-GCM, SHA-256, and CSPRNG primitives
//   - pkg/protocol: wire message types and length-prefixed frame codec
//   - pkg/auth: in-memory authorization store loaded from a whitelist file
//   - pkg/transfer: handshake state machine and the one-shot transfer pipeline
//   - pkg/obs: structured logging, metrics, tracing, and health checks
//   - internal/config: YAML + environment variable configuration loading
//   - internal/constants: wire and crypto parameters shared across packages
//   - internal/errors: the Kind-tagged error taxonomy surfaced to callers
//
// # Security Properties
//
//   - Authentication: the connector proves possession of a pre-shared
//     connect key via an RSA-encrypted challenge-response exchange; the
//     acceptor never receives the plaintext key over the wire.
//   - Confidentiality: each message block is sealed under a fresh,
//     single-use AES-256-GCM key, itself wrapped under the recipient's
//     RSA-2048 public key.
//   - Integrity: a SHA-256 checksum of the plaintext is verified on
//     receipt, in addition to the AES-GCM authentication tag.
//
// This scheme intentionally omits forward secrecy, a public-key
// infrastructure, key rotation, multi-party relaying, and resumable or
// streamed transfers.
//
// # Testing
//
//	go test ./...                           # all tests
//	go test -fuzz=FuzzDecodeEncryptedPayload ./test/fuzz/   # fuzz the frame codec
//	go test -bench=. ./test/benchmark       # handshake and seal/open benchmarks
package filerelay
