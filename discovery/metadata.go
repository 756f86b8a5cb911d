package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/JohnDeved/n3ds-smb/n3dserr"
)

const getMetadataAction = "http://schemas.xmlsoap.org/ws/2004/09/transfer/Get"

// getMetadataEnvelope builds a WS-Transfer Get (DPWS GetMetadata) SOAP
// request addressed to xaddr.
func getMetadataEnvelope(xaddr string) []byte {
	buf := bytes.Buffer{}
	fmt.Fprintf(&buf, `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"
               xmlns:wsa="http://schemas.xmlsoap.org/ws/2004/08/addressing">
  <soap:Header>
    <wsa:To>%s</wsa:To>
    <wsa:Action>%s</wsa:Action>
  </soap:Header>
  <soap:Body/>
</soap:Envelope>`, xaddr, getMetadataAction)
	return buf.Bytes()
}

// fetchFriendlyName POSTs a GetMetadata request to xaddr and extracts the
// device's NetBIOS name from ThisDevice/FriendlyName (spec.md §4.3 step
// 3): strip any vendor prefix before the first space and upper-case the
// remainder.
func fetchFriendlyName(ctx context.Context, xaddr string, timeout time.Duration) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, xaddr, bytes.NewReader(getMetadataEnvelope(xaddr)))
	if err != nil {
		return "", n3dserr.NewDiscoveryError(n3dserr.DiscoveryMetadataUnreachable, "", err)
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", n3dserr.NewDiscoveryError(n3dserr.DiscoveryMetadataUnreachable, "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", n3dserr.NewDiscoveryError(n3dserr.DiscoveryMetadataUnreachable, "", fmt.Errorf("metadata endpoint returned HTTP %d", resp.StatusCode))
	}

	root, err := parseXML(resp.Body)
	if err != nil {
		return "", n3dserr.NewDiscoveryError(n3dserr.DiscoveryNameUnresolvable, "", err)
	}
	friendlyName := root.find("FriendlyName").trimmedText()
	if friendlyName == "" {
		return "", n3dserr.NewDiscoveryError(n3dserr.DiscoveryNameUnresolvable, "", fmt.Errorf("no FriendlyName element in metadata response"))
	}

	name := friendlyName
	if idx := strings.IndexByte(friendlyName, ' '); idx >= 0 {
		name = friendlyName[idx+1:]
	}
	return strings.ToUpper(strings.TrimSpace(name)), nil
}
