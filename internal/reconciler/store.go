package reconciler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/totegamma/nftsurface"
)

// ContentStore is the content-addressed storage collaborator. Published
// content is referenced elsewhere by the returned address; dereferencing an
// address always yields the originally published bytes or fails closed.
type ContentStore interface {
	Publish(ctx context.Context, data []byte, name string) (string, error)
	PublishJSON(ctx context.Context, doc any, name string) (string, error)
	Retire(ctx context.Context, address string) error
}

const addressPrefix = "ipfs://"

// PinningStore publishes through a Pinata-compatible IPFS pinning API.
type PinningStore struct {
	endpoint string
	key      string
	secret   string
	client   *http.Client
}

func NewPinningStore(endpoint, key, secret string) *PinningStore {
	return &PinningStore{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		key:      key,
		secret:   secret,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

func (s *PinningStore) Publish(ctx context.Context, data []byte, name string) (string, error) {

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", errors.Wrap(err, "building upload request")
	}
	if _, err := part.Write(data); err != nil {
		return "", errors.Wrap(err, "building upload request")
	}

	meta, _ := json.Marshal(map[string]string{"name": name})
	if err := writer.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", errors.Wrap(err, "building upload request")
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrap(err, "building upload request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	s.authorize(req)

	return s.do(req)
}

func (s *PinningStore) PublishJSON(ctx context.Context, doc any, name string) (string, error) {

	payload, err := json.Marshal(map[string]any{
		"pinataContent":  doc,
		"pinataMetadata": map[string]string{"name": name},
	})
	if err != nil {
		return "", errors.Wrap(err, "serializing document")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/pinning/pinJSONToIPFS", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	return s.do(req)
}

func (s *PinningStore) Retire(ctx context.Context, address string) error {

	hash := strings.TrimPrefix(address, addressPrefix)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.endpoint+"/pinning/unpin/"+hash, nil)
	if err != nil {
		return err
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "unpinning content")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unpin returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *PinningStore) authorize(req *http.Request) {
	req.Header.Set("pinata_api_key", s.key)
	req.Header.Set("pinata_secret_api_key", s.secret)
}

func (s *PinningStore) do(req *http.Request) (string, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "publishing content")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("pinning service returned status %d: %s", resp.StatusCode, string(body))
	}

	var pinned pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pinned); err != nil {
		return "", errors.Wrap(err, "decoding pinning response")
	}
	if pinned.IpfsHash == "" {
		return "", errors.New("pinning service returned no content hash")
	}
	return addressPrefix + pinned.IpfsHash, nil
}

// MemoryStore is an in-process content-addressed store. Addresses are
// derived from the content digest, so publishing identical bytes twice
// yields the same address.
type MemoryStore struct {
	mu        sync.Mutex
	contents  map[string][]byte
	publishes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contents: make(map[string][]byte),
	}
}

func (s *MemoryStore) Publish(ctx context.Context, data []byte, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	address := addressPrefix + nftsurface.EncodeHex(nftsurface.GetHash(data))[2:]
	s.contents[address] = append([]byte(nil), data...)
	s.publishes++
	return address, nil
}

func (s *MemoryStore) PublishJSON(ctx context.Context, doc any, name string) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return s.Publish(ctx, data, name)
}

func (s *MemoryStore) Retire(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contents, address)
	return nil
}

// Get dereferences a published address.
func (s *MemoryStore) Get(address string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.contents[address]
	return data, ok
}

// Publishes reports how many publish calls the store has served.
func (s *MemoryStore) Publishes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishes
}
