// Package auth decodes signed identity tokens into the user and
// organization ids of an execctx.ExecutionContext.
//
// JWTDecoder validates HMAC-signed JWTs with github.com/golang-jwt/jwt/v5
// and is installed at the HTTP boundary:
//
//	dec, err := auth.NewJWTDecoder(auth.JWTConfig{
//	    Issuer:   "licensing",
//	    OrgClaim: "org_id",
//	}, auth.NewStaticKeyProvider(key))
//	if err != nil {
//	    return err
//	}
//	handler = execctx.Middleware(handler, execctx.WithTokenDecoder(dec))
//
// Authorization is not performed here. Downstream services receive the
// original token through execctx.Transport and decide for themselves.
package auth
