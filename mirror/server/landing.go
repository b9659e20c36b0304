/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"net/http"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/gin-gonic/gin"
)

const sampleEntry = `{
  "did": "did:plc:ewvi7nxzyoun6zhxrhs64oiz",
  "operation": {
    "type": "plc_operation",
    "rotationKeys": ["did:key:zQ3shhCGUqDKjStzuDxPkTxN6ujddP4RkEKJJouJGRRkaLGbg"],
    "verificationMethods": {
      "atproto": "did:key:zQ3shXjHeiBuRCKmM36cuYnm7YEMzhGnCmCyW92sRJ9pribSF"
    },
    "alsoKnownAs": ["at://atproto.com"],
    "services": {
      "atproto_pds": {
        "type": "AtprotoPersonalDataServer",
        "endpoint": "https://bsky.social"
      }
    },
    "prev": null,
    "sig": "..."
  },
  "cid": "bafyreibkyfs6hvwlhkfv5b2nzxpsbmhwyv3q2zyqopydhzw3dvz5mzcnsa",
  "nullified": false,
  "createdAt": "2022-11-17T06:31:40.296Z"
}`

const landingTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>PLC directory mirror</title>
<style>body{font-family:sans-serif;max-width:48rem;margin:2rem auto;padding:0 1rem}pre{overflow-x:auto}</style>
</head>
<body>
<h1>PLC directory mirror</h1>
<p>Read-only mirror of the did:plc directory. Documents are derived by
validating each DID's full operation history from genesis.</p>
<ul>
<li><code>GET /{did}</code> &mdash; resolved DID document</li>
<li><code>GET /{did}/data</code> &mdash; identity data for the DID</li>
<li><code>GET /{did}/log</code> &mdash; raw operation log</li>
<li><code>GET /export?count=&amp;after=</code> &mdash; jsonlines operation stream</li>
</ul>
<p>One export entry looks like this:</p>
%HIGHLIGHT%
</body>
</html>`

var landingPage = sync.OnceValue(func() string {
	var buf strings.Builder

	if err := quick.Highlight(&buf, sampleEntry, "json", "html", "github"); err != nil {
		// Fall back to the unhighlighted sample.
		return strings.Replace(landingTemplate, "%HIGHLIGHT%", "<pre>"+sampleEntry+"</pre>", 1)
	}

	return strings.Replace(landingTemplate, "%HIGHLIGHT%", buf.String(), 1)
})

func (s *Server) handleLanding(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(landingPage()))
}
