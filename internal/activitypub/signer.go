package activitypub

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-fed/httpsig"
)

// httpsig labels every signature hs2019; peers expect the concrete name.
var algorithmParam = regexp.MustCompile(`algorithm="[^"]*"`)

var (
	postHeaders = []string{httpsig.RequestTarget, "host", "date", "digest"}
	getHeaders  = []string{httpsig.RequestTarget, "host", "date"}
)

// Signer signs outbound requests as the local actor.
type Signer struct {
	keyID     string
	key       *rsa.PrivateKey
	publicPEM string
}

func NewSigner(keyID, privatePEM, publicPEM string) (*Signer, error) {
	key, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(publicPEM) == "" {
		der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("encode public key: %w", err)
		}
		publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	}
	return &Signer{keyID: keyID, key: key, publicPEM: publicPEM}, nil
}

func (s *Signer) KeyID() string        { return s.keyID }
func (s *Signer) PublicKeyPEM() string { return s.publicPEM }

// SignPost adds Host, Date, Digest and Signature headers for body.
func (s *Signer) SignPost(r *http.Request, body []byte) error {
	if body == nil {
		body = []byte{}
	}
	return s.sign(r, postHeaders, body)
}

// SignGet signs a bodiless request over (request-target) host date.
func (s *Signer) SignGet(r *http.Request) error {
	return s.sign(r, getHeaders, nil)
}

func (s *Signer) sign(r *http.Request, headers []string, body []byte) error {
	r.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	r.Header.Set("Host", r.URL.Host)
	r.Header.Del("Digest")

	// httpsig signers keep per-call state; build one per request.
	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		headers,
		httpsig.Signature,
		0,
	)
	if err != nil {
		return fmt.Errorf("new signer: %w", err)
	}
	if err := signer.SignRequest(s.key, s.keyID, r, body); err != nil {
		return fmt.Errorf("sign request: %w", err)
	}
	// algorithm is not part of the signing string, so the signature still holds.
	sig := r.Header.Get("Signature")
	r.Header.Set("Signature", algorithmParam.ReplaceAllLiteralString(sig, `algorithm="rsa-sha256"`))
	return nil
}

// ParsePrivateKey accepts PKCS#1 and PKCS#8 encoded RSA keys.
func ParsePrivateKey(pemText string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(pemText)))
	if block == nil {
		return nil, errors.New("private key: no PEM block")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key: not RSA")
	}
	return key, nil
}

// ParsePublicKey accepts PKIX and PKCS#1 encoded RSA public keys.
func ParsePublicKey(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(pemText)))
	if block == nil {
		return nil, errors.New("public key: no PEM block")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key: not RSA")
	}
	return key, nil
}
