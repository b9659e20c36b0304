/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"sort"
	"strings"

	"github.com/trustbloc/plc-go/operation"
)

// DIDDocument is the W3C-shaped document served for a resolved DID.
type DIDDocument struct {
	Context            []string             `json:"@context"`
	ID                 string               `json:"id"`
	AlsoKnownAs        []string             `json:"alsoKnownAs"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	Service            []Service            `json:"service"`
}

// VerificationMethod describes a cryptographic key in a DID document.
type VerificationMethod struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// Service describes a service endpoint in a DID document.
type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// RenderDIDDocument converts validated identity state into the W3C
// document shape. Map iteration order is pinned by sorting IDs.
func RenderDIDDocument(doc *operation.Document) *DIDDocument {
	out := &DIDDocument{
		Context: []string{
			"https://www.w3.org/ns/did/v1",
			"https://w3id.org/security/multikey/v1",
			"https://w3id.org/security/suites/secp256k1-2019/v1",
		},
		ID:          doc.DID,
		AlsoKnownAs: doc.AlsoKnownAs,
	}

	methodIDs := make([]string, 0, len(doc.VerificationMethods))
	for id := range doc.VerificationMethods {
		methodIDs = append(methodIDs, id)
	}

	sort.Strings(methodIDs)

	for _, id := range methodIDs {
		out.VerificationMethod = append(out.VerificationMethod, VerificationMethod{
			ID:                 doc.DID + "#" + id,
			Type:               "Multikey",
			Controller:         doc.DID,
			PublicKeyMultibase: strings.TrimPrefix(doc.VerificationMethods[id], "did:key:"),
		})
	}

	serviceIDs := make([]string, 0, len(doc.Services))
	for id := range doc.Services {
		serviceIDs = append(serviceIDs, id)
	}

	sort.Strings(serviceIDs)

	for _, id := range serviceIDs {
		svc := doc.Services[id]

		out.Service = append(out.Service, Service{
			ID:              "#" + id,
			Type:            svc.Type,
			ServiceEndpoint: svc.Endpoint,
		})
	}

	return out
}
