// Package discovery implements WS-Discovery multicast probing and DPWS
// metadata retrieval to locate the microSD Management server on the LAN
// without user configuration (spec.md §4.3), independent of the SMB1
// stack.
package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jfjallid/golog"
	"golang.org/x/net/ipv4"

	"github.com/JohnDeved/n3ds-smb/n3dserr"
)

var log = golog.Get("discovery")

// MulticastAddr is the WS-Discovery multicast group and port (spec.md
// §4.3 step 2).
const MulticastAddr = "239.255.255.250:3702"

const probeAction = "http://schemas.xmlsoap.org/ws/2005/04/discovery/Probe"

// probeEnvelope builds a SOAP 1.2 WS-Discovery Probe envelope carrying a
// fresh MessageID (a UUID URN). messageID is returned separately so the
// caller can validate ProbeMatch RelatesTo against it.
func probeEnvelope() (envelope []byte, messageID string) {
	messageID = "urn:uuid:" + uuid.New().String()
	buf := bytes.Buffer{}
	fmt.Fprintf(&buf, `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"
               xmlns:wsa="http://schemas.xmlsoap.org/ws/2004/08/addressing"
               xmlns:wsd="http://schemas.xmlsoap.org/ws/2005/04/discovery">
  <soap:Header>
    <wsa:To>urn:schemas-xmlsoap-org:ws:2005:04:discovery</wsa:To>
    <wsa:Action>%s</wsa:Action>
    <wsa:MessageID>%s</wsa:MessageID>
  </soap:Header>
  <soap:Body>
    <wsd:Probe>
      <wsd:Types>wsd:Device</wsd:Types>
    </wsd:Probe>
  </soap:Body>
</soap:Envelope>`, probeAction, messageID)
	return buf.Bytes(), messageID
}

// ProbeMatch is one decoded WS-Discovery ProbeMatch: the candidate HTTP
// metadata endpoints and the source address it arrived from.
type ProbeMatch struct {
	From   net.Addr
	XAddrs []string
}

// probe sends one WS-Discovery Probe over UDP multicast and collects
// ProbeMatch responses for up to window, deduplicating by source address
// (spec.md §4.3 step 2).
func probe(ctx context.Context, window time.Duration) ([]ProbeMatch, error) {
	group, err := net.ResolveUDPAddr("udp4", MulticastAddr)
	if err != nil {
		return nil, n3dserr.NewDiscoveryError(n3dserr.DiscoveryNoResponders, "", err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, n3dserr.NewNetworkError(n3dserr.NetworkUnreachable, "discovery udp listen", err)
	}
	defer conn.Close()

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(1); err != nil {
		log.Debugf("set multicast ttl failed: %v", err)
	}
	if err := pc.SetMulticastLoopback(true); err != nil {
		log.Debugf("set multicast loopback failed: %v", err)
	}

	envelope, messageID := probeEnvelope()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.WriteToUDP(envelope, group); err != nil {
		return nil, n3dserr.NewNetworkError(n3dserr.NetworkUnreachable, "send probe", err)
	}
	log.Debugf("sent ws-discovery probe, message-id=%s", messageID)

	collectUntil := time.Now().Add(window)
	if deadline, ok := ctx.Deadline(); ok && deadline.Before(collectUntil) {
		collectUntil = deadline
	}

	seen := make(map[string]bool)
	var matches []ProbeMatch
	buf := make([]byte, 65535)
	for {
		remaining := time.Until(collectUntil)
		if remaining <= 0 {
			break
		}
		conn.SetReadDeadline(time.Now().Add(remaining))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			break
		}
		key := from.String()
		if seen[key] {
			continue
		}

		root, err := parseXML(bytes.NewReader(buf[:n]))
		if err != nil {
			log.Debugf("discarding malformed ws-discovery response from %s: %v", from, err)
			continue
		}
		relatesTo := root.find("RelatesTo").trimmedText()
		if relatesTo != messageID {
			log.Debugf("discarding ws-discovery response from %s: relatesto %q != %q", from, relatesTo, messageID)
			continue
		}
		pm := root.find("ProbeMatch")
		if pm == nil {
			continue
		}
		xaddrsText := pm.find("XAddrs").trimmedText()
		if xaddrsText == "" {
			continue
		}
		seen[key] = true
		matches = append(matches, ProbeMatch{From: from, XAddrs: strings.Fields(xaddrsText)})
	}
	return matches, nil
}
