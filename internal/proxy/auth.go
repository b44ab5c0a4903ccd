package proxy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/fieldfront/fieldfront/internal/config"
	"github.com/fieldfront/fieldfront/internal/cookie"
)

// authenticator is the per-route upstream authentication strategy, chosen
// once at handler construction rather than per request.
type authenticator interface {
	// excludedHeaders lists request headers that must not be forwarded,
	// in addition to the shared exclusion set.
	excludedHeaders() map[string]bool

	// authenticate finalizes the outbound request: injecting a bearer token
	// or computing a request signature.
	authenticate(outReq, inReq *http.Request, body []byte) error
}

// bearerAuth forwards a session token from cookies when the client did not
// supply its own Authorization header.
type bearerAuth struct {
	cookies cookie.Store
}

func (a *bearerAuth) excludedHeaders() map[string]bool {
	return nil
}

func (a *bearerAuth) authenticate(outReq, inReq *http.Request, body []byte) error {
	if outReq.Header.Get("Authorization") != "" {
		return nil
	}

	tokens := a.cookies.Read(inReq)
	token := tokens.AccessToken
	if token == "" {
		token = tokens.IDToken
	}
	if token != "" {
		outReq.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// sigv4Exclusions drops the caller's credential headers so the computed
// signature is the only authentication on the outbound request.
var sigv4Exclusions = map[string]bool{
	"Authorization":        true,
	"X-Amz-Date":           true,
	"X-Amz-Security-Token": true,
	"X-Amz-Content-Sha256": true,
}

// sigv4Auth signs the outbound request with AWS Signature Version 4.
type sigv4Auth struct {
	signer *Signer
}

func (a *sigv4Auth) excludedHeaders() map[string]bool {
	return sigv4Exclusions
}

func (a *sigv4Auth) authenticate(outReq, inReq *http.Request, body []byte) error {
	if a.signer == nil {
		return fmt.Errorf("request signing is not configured")
	}
	return a.signer.Sign(outReq, body)
}

// Signer computes SigV4 signatures for one region and service using
// provider-resolved credentials.
type Signer struct {
	signer      *v4.Signer
	credentials aws.CredentialsProvider
	region      string
	service     string
}

// NewSigner builds a signer from the upstream config. Explicit credentials
// take precedence; otherwise the AWS default chain is used.
func NewSigner(ctx context.Context, cfg config.UpstreamConfig) (*Signer, error) {
	var provider aws.CredentialsProvider
	if cfg.AccessKeyID != "" {
		provider = credentials.NewStaticCredentialsProvider(
			string(cfg.AccessKeyID), string(cfg.SecretAccessKey), string(cfg.SessionToken))
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		provider = awsCfg.Credentials
	}

	return &Signer{
		signer:      v4.NewSigner(),
		credentials: provider,
		region:      cfg.Region,
		service:     cfg.Service,
	}, nil
}

// Sign computes the signature over the outbound request and strips the
// Host and Content-Length headers the signing step may have set; the
// transport recomputes both.
func (s *Signer) Sign(req *http.Request, body []byte) error {
	ctx := req.Context()

	creds, err := s.credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("resolving signing credentials: %w", err)
	}

	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])

	if err := s.signer.SignHTTP(ctx, creds, req, payloadHash, s.service, s.region, time.Now().UTC()); err != nil {
		return fmt.Errorf("signing request: %w", err)
	}

	req.Header.Del("Host")
	req.Header.Del("Content-Length")
	return nil
}
