package storage

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// S3Config descreve o bucket que guarda os comprovantes em PDF.
// Compatível com S3 e Cloudflare R2.
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicDomain string
	HTTPClient   *http.Client
}

// S3Uploader envia documentos por PUT assinado com SigV4. Não usa o SDK
// da AWS: o serviço só precisa de PUT simples, sem multipart nem listagem.
type S3Uploader struct {
	cfg    S3Config
	client *http.Client
}

// NewS3Uploader valida a configuração e devolve o uploader.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	switch {
	case strings.TrimSpace(cfg.Endpoint) == "":
		return nil, errors.New("storage: endpoint do bucket ausente")
	case !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://"):
		return nil, errors.New("storage: endpoint deve incluir protocolo http/https")
	case strings.TrimSpace(cfg.Region) == "":
		return nil, errors.New("storage: região ausente")
	case strings.TrimSpace(cfg.Bucket) == "":
		return nil, errors.New("storage: bucket ausente")
	case strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "":
		return nil, errors.New("storage: credenciais ausentes")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &S3Uploader{cfg: cfg, client: client}, nil
}

// Upload grava o documento no bucket e devolve a URL que fica registrada
// na solicitação. Com PublicDomain configurado (CDN na frente do bucket)
// a URL pública aponta para lá.
func (u *S3Uploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if strings.TrimSpace(input.Key) == "" {
		return nil, errors.New("storage: chave do objeto obrigatória")
	}
	if len(input.Body) == 0 {
		return nil, errors.New("storage: documento vazio")
	}

	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = "application/pdf"
	}
	cacheControl := strings.TrimSpace(input.CacheControl)
	if cacheControl == "" {
		// comprovantes são documentos pessoais, nunca cacheáveis em proxy
		cacheControl = "private, max-age=0"
	}

	key := escapeObjectKey(input.Key)
	endpoint := strings.TrimRight(u.cfg.Endpoint, "/")
	targetURL := fmt.Sprintf("%s/%s/%s", endpoint, u.cfg.Bucket, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, targetURL, bytes.NewReader(input.Body))
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(input.Body)
	payloadHash := hex.EncodeToString(digest[:])

	req.ContentLength = int64(len(input.Body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", cacheControl)
	req.Header.Set("x-amz-content-sha256", payloadHash)

	u.sign(req, payloadHash, time.Now().UTC())

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("storage: upload falhou (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	publicURL := targetURL
	if domain := strings.TrimRight(strings.TrimSpace(u.cfg.PublicDomain), "/"); domain != "" {
		publicURL = fmt.Sprintf("%s/%s", domain, key)
	}

	return &UploadResult{
		URL:  publicURL,
		ETag: strings.Trim(resp.Header.Get("ETag"), "\""),
	}, nil
}

// sign aplica a assinatura AWS SigV4 ao PUT. O serviço só emite PUT sem
// query string, então a requisição canônica usa um conjunto fixo de
// cabeçalhos assinados.
func (u *S3Uploader) sign(req *http.Request, payloadHash string, now time.Time) {
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")

	req.Header.Set("x-amz-date", amzDate)

	signedHeaders := "cache-control;content-type;host;x-amz-content-sha256;x-amz-date"
	canonicalHeaders := strings.Join([]string{
		"cache-control:" + req.Header.Get("Cache-Control"),
		"content-type:" + req.Header.Get("Content-Type"),
		"host:" + req.URL.Host,
		"x-amz-content-sha256:" + payloadHash,
		"x-amz-date:" + amzDate,
	}, "\n") + "\n"

	canonicalRequest := strings.Join([]string{
		http.MethodPut,
		req.URL.EscapedPath(),
		"",
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	hashed := sha256.Sum256([]byte(canonicalRequest))
	scope := fmt.Sprintf("%s/%s/s3/aws4_request", dateStamp, u.cfg.Region)
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		scope,
		hex.EncodeToString(hashed[:]),
	}, "\n")

	kDate := hmacSHA256([]byte("AWS4"+u.cfg.SecretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(u.cfg.Region))
	kService := hmacSHA256(kRegion, []byte("s3"))
	signingKey := hmacSHA256(kService, []byte("aws4_request"))
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		u.cfg.AccessKey, scope, signedHeaders, signature,
	))
}

// escapeObjectKey codifica a chave preservando as barras de diretório.
func escapeObjectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	return (&url.URL{Path: key}).EscapedPath()
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
