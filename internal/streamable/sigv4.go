package streamable

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// AWS signature v4 for the single PUT against the S3 bucket Streamable
// points uploads at, using the temporary credentials its shortcode
// endpoint hands out.

const signAlgorithm = "AWS4-HMAC-SHA256"

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

func signingKey(secretKey, datestamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), datestamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, "aws4_request")
}

// awsAuthorization builds the Authorization header for a request whose
// headers must already include x-amz-content-sha256.
func awsAuthorization(method string, headers map[string]string, reqTime time.Time,
	accessKeyID, secretAccessKey, uri string, query url.Values, region, service string) (string, error) {

	canonical := make(map[string]string, len(headers))
	keys := make([]string, 0, len(headers))
	for k, v := range headers {
		lk := strings.ToLower(k)
		canonical[lk] = strings.TrimSpace(v)
		keys = append(keys, lk)
	}
	sort.Strings(keys)

	contentSHA, ok := canonical["x-amz-content-sha256"]
	if !ok {
		return "", fmt.Errorf("missing x-amz-content-sha256 header")
	}

	datestamp := reqTime.Format("20060102")
	timestamp := reqTime.Format("20060102T150405Z")
	scope := strings.Join([]string{datestamp, region, service, "aws4_request"}, "/")
	signedHeaders := strings.Join(keys, ";")

	var headerLines strings.Builder
	for _, k := range keys {
		headerLines.WriteString(k)
		headerLines.WriteString(":")
		headerLines.WriteString(canonical[k])
		headerLines.WriteString("\n")
	}

	canonicalRequest := strings.Join([]string{
		method,
		uri,
		query.Encode(),
		headerLines.String(),
		signedHeaders,
		contentSHA,
	}, "\n")

	requestHash := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		signAlgorithm,
		timestamp,
		scope,
		hex.EncodeToString(requestHash[:]),
	}, "\n")

	key := signingKey(secretAccessKey, datestamp, region, service)
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	return fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		signAlgorithm, accessKeyID, scope, signedHeaders, signature), nil
}
