// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

// Package search implements the session-scoped full-text index.
//
// The index is a derived cache: it is rebuilt from decrypted content on
// every unlock, updated incrementally on every committed vault mutation, and
// never written to durable storage. Dropping it on lock leaks nothing — the
// only persistent artifacts of a search are in the caller's memory.
package search

import (
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/KhylleVillasurda/Notequarry/models"
)

// Hit is one ranked search result.
type Hit struct {
	EntryID string

	// Score is a term-frequency relevance score; 0 for empty-query listing.
	Score float64
}

// document is the indexed form of one entry.
type document struct {
	// terms maps token -> occurrence count across title and all pages.
	terms map[string]int

	// length is the total token count, used to normalize scores so long
	// books do not dominate short notes.
	length int

	updatedAt time.Time
}

// Index is an in-memory inverted index over all live entries. Mutations take
// the write lock and swap state in one critical section, so readers observe
// either the pre- or post-update index, never a partially applied one.
type Index struct {
	mu sync.RWMutex

	docs map[string]*document

	// postings maps token -> entry ID -> occurrence count.
	postings map[string]map[string]int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		docs:     make(map[string]*document),
		postings: make(map[string]map[string]int),
	}
}

// Rebuild replaces the whole index from decrypted entries. Called once at
// unlock time.
func (ix *Index) Rebuild(entries []models.Entry) {
	docs := make(map[string]*document, len(entries))
	postings := make(map[string]map[string]int)

	for _, e := range entries {
		doc := buildDocument(e)
		docs[e.ID] = doc
		for term, n := range doc.terms {
			bucket := postings[term]
			if bucket == nil {
				bucket = make(map[string]int)
				postings[term] = bucket
			}
			bucket[e.ID] = n
		}
	}

	ix.mu.Lock()
	ix.docs = docs
	ix.postings = postings
	ix.mu.Unlock()
}

// Upsert indexes one entry's current content, replacing any previous state
// for the same ID. Called synchronously after every committed mutation so
// searches reflect the update before the mutating call returns.
func (ix *Index) Upsert(e models.Entry) {
	doc := buildDocument(e)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(e.ID)
	ix.docs[e.ID] = doc
	for term, n := range doc.terms {
		bucket := ix.postings[term]
		if bucket == nil {
			bucket = make(map[string]int)
			ix.postings[term] = bucket
		}
		bucket[e.ID] = n
	}
}

// Remove drops an entry from the index (tombstoned or purged).
func (ix *Index) Remove(entryID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(entryID)
}

func (ix *Index) removeLocked(entryID string) {
	doc, ok := ix.docs[entryID]
	if !ok {
		return
	}
	for term := range doc.terms {
		bucket := ix.postings[term]
		delete(bucket, entryID)
		if len(bucket) == 0 {
			delete(ix.postings, term)
		}
	}
	delete(ix.docs, entryID)
}

// Reset empties the index. Called on lock.
func (ix *Index) Reset() {
	ix.mu.Lock()
	ix.docs = make(map[string]*document)
	ix.postings = make(map[string]map[string]int)
	ix.mu.Unlock()
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Search returns entries matching query ranked by summed term frequency
// normalized by document length, ties broken by most recent modification
// first. An empty query returns every indexed entry, unranked, most recently
// modified first — the default list view.
func (ix *Index) Search(query string) []Hit {
	terms := Tokenize(query)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(terms) == 0 {
		return ix.allLocked()
	}

	scores := make(map[string]float64)
	for _, term := range terms {
		for id, n := range ix.postings[term] {
			scores[id] += float64(n) / float64(ix.docs[id].length)
		}
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, Hit{EntryID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		ti, tj := ix.docs[hits[i].EntryID].updatedAt, ix.docs[hits[j].EntryID].updatedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return hits[i].EntryID < hits[j].EntryID
	})

	return hits
}

func (ix *Index) allLocked() []Hit {
	hits := make([]Hit, 0, len(ix.docs))
	for id := range ix.docs {
		hits = append(hits, Hit{EntryID: id})
	}
	sort.Slice(hits, func(i, j int) bool {
		ti, tj := ix.docs[hits[i].EntryID].updatedAt, ix.docs[hits[j].EntryID].updatedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return hits[i].EntryID < hits[j].EntryID
	})
	return hits
}

func buildDocument(e models.Entry) *document {
	doc := &document{
		terms:     make(map[string]int),
		updatedAt: e.UpdatedAt,
	}
	add := func(text string) {
		for _, tok := range Tokenize(text) {
			doc.terms[tok]++
			doc.length++
		}
	}
	add(e.Title)
	for _, tag := range e.Tags {
		add(tag)
	}
	for _, p := range e.Pages {
		add(p.Text)
	}
	if doc.length == 0 {
		doc.length = 1 // avoid division by zero for empty entries
	}
	return doc
}

// Tokenize lowercases text and splits it on any non-letter, non-digit rune.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
