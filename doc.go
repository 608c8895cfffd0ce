// Package authcore is an embeddable session-token authentication core.
//
// It issues EdDSA-signed access and refresh token pairs bound to
// server-side sessions, verifies them with a strict
// signature-before-trust pipeline, and rotates refresh tokens through
// an atomic version gate so a replayed refresh token is detected the
// moment it is presented.
//
// The engine owns tokens and sessions only. User accounts live behind
// the caller-supplied [UserRepository], which is re-consulted on every
// refresh and verification so deactivation takes effect without
// waiting for token expiry.
//
//	engine, err := authcore.New().
//		WithUserRepository(repo).
//		WithIssuer("api.example.com").
//		Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	resp, err := engine.Login(ctx, email, password, false)
//	...
//	authCtx, err := engine.Verify(ctx, resp.AccessToken)
package authcore
