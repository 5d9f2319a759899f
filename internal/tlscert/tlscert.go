// Package tlscert готовит пару сертификат/ключ для HTTPS режима сервера.
//
// Если файлы отсутствуют, пусты, битые или сертификат просрочен, генерируется
// самоподписанный сертификат на заданные хосты и сохраняется по тем же путям.
package tlscert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Ошибки проверки существующей пары.
var (
	ErrBlankPEM        = errors.New("pem is blank")
	ErrCertExpired     = errors.New("certificate is expired")
	ErrCertNotValidYet = errors.New("certificate is not valid yet")
)

const (
	DefaultCertFile = "cert.pem"
	DefaultKeyFile  = "key.pem"
	DefaultValidFor = 365 * 24 * time.Hour
)

// Options настройки генерации.
type Options struct {
	CertFile string
	KeyFile  string
	// Hosts имена и IP, на которые выписывается сертификат
	Hosts    []string
	ValidFor time.Duration
	Now      func() time.Time
}

func WithFiles(certFile, keyFile string) func(*Options) {
	return func(o *Options) {
		o.CertFile = certFile
		o.KeyFile = keyFile
	}
}

func WithHosts(hosts ...string) func(*Options) {
	return func(o *Options) {
		o.Hosts = hosts
	}
}

func WithValidFor(d time.Duration) func(*Options) {
	return func(o *Options) {
		o.ValidFor = d
	}
}

// WithClock подменяет текущее время (для тестов).
func WithClock(now func() time.Time) func(*Options) {
	return func(o *Options) {
		o.Now = now
	}
}

// Pair пути к файлам сертификата и ключа.
type Pair struct {
	CertFile string
	KeyFile  string
}

// Ensure проверяет пару на диске и при необходимости выписывает новую.
// Второе значение true, если пара была сгенерирована.
func Ensure(opts ...func(*Options)) (Pair, bool, error) {
	options := Options{
		CertFile: DefaultCertFile,
		KeyFile:  DefaultKeyFile,
		Hosts:    []string{"localhost", "127.0.0.1", "::1"},
		ValidFor: DefaultValidFor,
		Now:      time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}
	pair := Pair{CertFile: options.CertFile, KeyFile: options.KeyFile}

	checkErr := Check(pair, options.Now())
	if checkErr == nil {
		return pair, false, nil
	}
	if !errors.Is(checkErr, ErrBlankPEM) && !errors.Is(checkErr, ErrCertExpired) {
		return pair, false, checkErr
	}

	certPEM, keyPEM, err := generate(options)
	if err != nil {
		return pair, false, err
	}
	if err := writeFile(pair.CertFile, certPEM, 0o644); err != nil { //nolint:mnd
		return pair, false, err
	}
	if err := writeFile(pair.KeyFile, keyPEM, 0o600); err != nil { //nolint:mnd
		return pair, false, err
	}
	return pair, true, nil
}

// Check проверяет, что пара читается и сертификат действует в момент now.
// Отсутствующие или пустые файлы дают ErrBlankPEM.
func Check(pair Pair, now time.Time) error {
	certPEM, err := readFile(pair.CertFile)
	if err != nil {
		return err
	}
	keyPEM, err := readFile(pair.KeyFile)
	if err != nil {
		return err
	}

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	leaf, err := x509.ParseCertificate(tlsCert.Certificate[0])
	if err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}

	switch {
	case leaf.NotBefore.After(now):
		return ErrCertNotValidYet
	case leaf.NotAfter.Before(now):
		return ErrCertExpired
	}
	return nil
}

func generate(options Options) ([]byte, []byte, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128)) //nolint:mnd
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial number: %w", err)
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate private key: %w", err)
	}

	now := options.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{Organization: []string{"shortlinks"}},
		NotBefore:    now.Add(-time.Minute),
		NotAfter:     now.Add(options.ValidFor),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range options.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBlankPEM, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBlankPEM, path)
	}
	return data, nil
}

func writeFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
