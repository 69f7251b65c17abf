package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var errWrongOperator = errors.New(`"sub" is not the console operator`)

// consolePolicy is what an access token must satisfy to act on the console.
// There is a single operator, so the subject has to be the configured admin
// email and not merely present.
type consolePolicy struct {
	issuer    string
	audience  string
	operator  string
	clockSkew time.Duration
	algorithm jwa.SignatureAlgorithm
}

// check validates tok, signed with algorithm, at now and returns its subject.
func (p consolePolicy) check(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) (string, error) {
	if tok == nil {
		return "", errors.New("auth: token is nil")
	}
	if algorithm != p.algorithm {
		return "", fmt.Errorf("auth: unexpected token algorithm %q", algorithm)
	}

	err := jwt.Validate(tok,
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(p.clockSkew),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithRequiredClaim(jwt.SubjectKey),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
		jwt.WithValidator(jwt.ValidatorFunc(func(_ context.Context, t jwt.Token) jwt.ValidationError {
			if p.operator == "" || t.Subject() != p.operator {
				return jwt.NewValidationError(errWrongOperator)
			}
			return nil
		})),
	)
	if err != nil {
		return "", err
	}
	return tok.Subject(), nil
}
