package core

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"time"
)

// Makes sure that a certificate and private key exist in the current directory,
// generating a self-signed one otherwise, and returns the names of the files.
// The certificate is valid for the hostname and for "localhost". Most likely the
// client will ignore verification of the certificate anyway, since this is not
// easy to get right in Kubernetes
func EnsureCertificates() (string, string) {

	certFileName := "cert.pem"
	keyFileName := "key.pem"

	// Do nothing if both files exist already
	if _, err := os.Stat(certFileName); err == nil {
		if _, err := os.Stat(keyFileName); err == nil {
			return certFileName, keyFileName
		}
	}

	// Generate private key
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic("could not generate private key: " + err.Error())
	}

	// Generate public key
	publicKey := &privKey.PublicKey

	// Generate the certificate
	certTemplate := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Indra"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	// Add the endpoints to the certificate
	myHostname, _ := os.Hostname()
	certTemplate.DNSNames = append(certTemplate.DNSNames, myHostname, "localhost")

	// Serialize the certificate
	derBytes, err := x509.CreateCertificate(rand.Reader, &certTemplate, &certTemplate, publicKey, privKey)
	if err != nil {
		panic("could not generate the certificate: " + err.Error())
	}

	// Write certificate
	certOut, err := os.Create(certFileName)
	if err != nil {
		panic("failed to open " + certFileName + " for writing: " + err.Error())
	}
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes}); err != nil {
		panic("failed to write data to " + certFileName + ": " + err.Error())
	}
	if err := certOut.Close(); err != nil {
		panic("error closing " + certFileName + ": " + err.Error())
	}

	// Write key
	keyOut, err := os.OpenFile(keyFileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		panic("failed to open " + keyFileName + " for writing: " + err.Error())
	}

	privBytes, err := x509.MarshalPKCS8PrivateKey(privKey)
	if err != nil {
		panic("unable to marshal private key: " + err.Error())
	}

	if err := pem.Encode(keyOut, &pem.Block{Type: "PRIVATE KEY", Bytes: privBytes}); err != nil {
		panic("failed to write data to " + keyFileName + ": " + err.Error())
	}

	if err := keyOut.Close(); err != nil {
		panic("error closing " + keyFileName + ": " + err.Error())
	}

	return certFileName, keyFileName
}
