package validator

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	types "github.com/prysmaticlabs/duties-engine/consensus-types"
	"github.com/prysmaticlabs/duties-engine/crypto/bls"
	"github.com/sirupsen/logrus"
)

// remoteSignRequest is the web3signer-shaped request body: a type tag plus
// the signing root, grounded on validator/keymanager/remote-web3signer's
// v1 request types.
type remoteSignRequest struct {
	Type        string `json:"type"`
	SigningRoot string `json:"signingRoot"`
}

type remoteSignResponse struct {
	Signature string `json:"signature"`
}

// remoteSigner dispatches signing requests over HTTP to an externally
// hosted signer. The HTTP client is created once per attached validator and
// reused, per spec.md §5's resource policy.
type remoteSigner struct {
	pubkey     bls.PublicKey
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
}

func newRemoteSigner(pubkey bls.PublicKey, baseURL string, ignoreSSLVerification bool) Signer {
	transport := &http.Transport{}
	if ignoreSSLVerification {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in, mirrors web3signer keymanager flag
	}
	return &remoteSigner{
		pubkey:  pubkey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   5 * time.Second,
		},
		log: logrus.WithField("prefix", "remote-signer").WithField("endpoint", baseURL),
	}
}

func (s *remoteSigner) PublicKey() bls.PublicKey { return s.pubkey }

func (s *remoteSigner) Sign(ctx context.Context, kind SigningRequestKind, signingRoot types.Root) (bls.Signature, error) {
	correlationID := uuid.New().String()
	body := remoteSignRequest{
		Type:        kind.String(),
		SigningRoot: "0x" + hex.EncodeToString(signingRoot[:]),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal remote sign request")
	}

	url := fmt.Sprintf("%s/api/v1/eth2/sign/%s", s.baseURL, hex.EncodeToString(s.pubkey.Marshal()))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build remote sign request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-Id", correlationID)

	s.log.WithFields(logrus.Fields{
		"kind":          kind,
		"correlationId": correlationID,
	}).Debug("Dispatching remote signing request")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "remote signer request failed (correlation_id=%s)", correlationID)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("remote signer returned status %d (correlation_id=%s)", resp.StatusCode, correlationID)
	}

	var out remoteSignResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrapf(err, "failed to decode remote signer response (correlation_id=%s)", correlationID)
	}
	sigBytes, err := hex.DecodeString(trimHexPrefix(out.Signature))
	if err != nil {
		return nil, errors.Wrap(err, "remote signer returned malformed signature")
	}
	return bls.RawSignature(sigBytes), nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
