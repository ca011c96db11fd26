package activitypub

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-fed/httpsig"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
	"github.com/Somerville-Events/somerville.events-sub000/internal/repository"
)

const testBase = "http://localhost"

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func testKeyPair(t testing.TB) (*rsa.PrivateKey, string, string) {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	priv := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(testKey)})
	der, err := x509.MarshalPKIXPublicKey(&testKey.PublicKey)
	require.NoError(t, err)
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return testKey, string(priv), string(pub)
}

func testSigner(t testing.TB) *Signer {
	t.Helper()
	_, priv, pub := testKeyPair(t)
	s, err := NewSigner(NewURLs(testBase).KeyID(), priv, pub)
	require.NoError(t, err)
	return s
}

func setupRepo(t testing.TB) *repository.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))
	return repository.New(db, nil)
}

// verifySigned checks the HTTP signature and body digest of a request
// received by a fake peer.
func verifySigned(r *http.Request, body []byte, pub *rsa.PublicKey) error {
	r.Header.Set("Host", r.Host)
	v, err := httpsig.NewVerifier(r)
	if err != nil {
		return err
	}
	if err := v.Verify(pub, httpsig.RSA_SHA256); err != nil {
		return err
	}
	if body != nil {
		sum := sha256.Sum256(body)
		want := "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
		if got := r.Header.Get("Digest"); got != want {
			return fmt.Errorf("digest mismatch: %q != %q", got, want)
		}
	}
	return nil
}

// fakeInbox records every activity POSTed to it.
type fakeInbox struct {
	mu       sync.Mutex
	received []map[string]interface{}
	sigs     []string
	badSig   int
	status   int
	pub      *rsa.PublicKey
}

func newFakeInbox(pub *rsa.PublicKey, status int) (*fakeInbox, *httptest.Server) {
	f := &fakeInbox{pub: pub, status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		defer f.mu.Unlock()
		if err := verifySigned(r, body, f.pub); err != nil {
			f.badSig++
		}
		var doc map[string]interface{}
		_ = json.Unmarshal(body, &doc)
		f.received = append(f.received, doc)
		f.sigs = append(f.sigs, r.Header.Get("Signature"))
		w.WriteHeader(f.status)
	}))
	return f, srv
}

func (f *fakeInbox) signatures() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sigs...)
}

func (f *fakeInbox) snapshot() ([]map[string]interface{}, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]interface{}(nil), f.received...), f.badSig
}
