package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	fixture := newServerFixture(t, fixtureOptions{})

	recorder := fixture.do(t, http.MethodGet, "/api/categories/health/", nil, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload map[string]string
	decodeBody(t, recorder, &payload)
	if payload["status"] != "ok" || payload["message"] != healthMessage {
		t.Fatalf("unexpected health payload %v", payload)
	}
}

func TestCategoryListOrdersByFrequency(t *testing.T) {
	fixture := newServerFixture(t, fixtureOptions{})
	animals := fixture.category(t, "Animals")
	fixture.category(t, "Birds")
	cars := fixture.category(t, "Cars")

	for i := 0; i < 2; i++ {
		if recorder := fixture.do(t, http.MethodPost, fmt.Sprintf("/api/categories/track/%d/", cars.ID), nil, ""); recorder.Code != http.StatusOK {
			t.Fatalf("track failed: %d %s", recorder.Code, recorder.Body.String())
		}
	}
	if recorder := fixture.do(t, http.MethodPost, fmt.Sprintf("/api/categories/track/%d/", animals.ID), nil, ""); recorder.Code != http.StatusOK {
		t.Fatalf("track failed: %d", recorder.Code)
	}

	recorder := fixture.do(t, http.MethodGet, "/api/categories/", nil, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload []categoryPayload
	decodeBody(t, recorder, &payload)
	titles := make([]string, 0, len(payload))
	for _, category := range payload {
		titles = append(titles, category.Title)
	}
	if strings.Join(titles, ",") != "Cars,Animals,Birds" {
		t.Fatalf("unexpected frequency order %v", titles)
	}
	if payload[0].AccessCount != 2 {
		t.Fatalf("expected access count 2, got %d", payload[0].AccessCount)
	}
	if !strings.HasPrefix(payload[0].Thumbnail, "http://example.com/media/categories/") {
		t.Fatalf("expected absolute thumbnail url, got %s", payload[0].Thumbnail)
	}

	recorder = fixture.do(t, http.MethodGet, "/api/categories/?sort_by=bogus", nil, "")
	decodeBody(t, recorder, &payload)
	if payload[0].Title != "Animals" || payload[2].Title != "Cars" {
		t.Fatalf("expected title order for unknown sort key, got %+v", payload)
	}
}

func TestCategoryDetailRecordsOneAccessPerView(t *testing.T) {
	fixture := newServerFixture(t, fixtureOptions{})
	category := fixture.category(t, "Dinosaurs", "trex.png", "raptor.png")
	token := fixture.deviceToken(t, "device-detail")

	for i := 0; i < 2; i++ {
		recorder := fixture.do(t, http.MethodGet, fmt.Sprintf("/api/categories/%d/", category.ID), nil, "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		var images []imagePayload
		decodeBody(t, recorder, &images)
		if len(images) != 2 {
			t.Fatalf("expected two images, got %d", len(images))
		}
		if images[0].Image != "http://example.com/media/printables/trex.png" {
			t.Fatalf("unexpected image link %s", images[0].Image)
		}
	}
	if recorder := fixture.do(t, http.MethodGet, fmt.Sprintf("/api/categories/%d/", category.ID), nil, token); recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for authenticated view, got %d", recorder.Code)
	}

	count, err := fixture.catalog.AccessCount(t.Context(), category.ID)
	if err != nil {
		t.Fatalf("access count failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected three accesses, got %d", count)
	}

	recorder := fixture.do(t, http.MethodGet, "/api/categories/last-access/", nil, "")
	var recent []categoryPayload
	decodeBody(t, recorder, &recent)
	if len(recent) != 3 || recent[0].ID != category.ID {
		t.Fatalf("expected three recent rows for the category, got %+v", recent)
	}
}

func TestCategoryDetailMissing(t *testing.T) {
	fixture := newServerFixture(t, fixtureOptions{})

	recorder := fixture.do(t, http.MethodGet, "/api/categories/999/", nil, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
	recorder = fixture.do(t, http.MethodPost, "/api/categories/track/999/", nil, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for tracking missing category, got %d", recorder.Code)
	}
}

func TestTrackAccessReportsCount(t *testing.T) {
	fixture := newServerFixture(t, fixtureOptions{})
	category := fixture.category(t, "Space")

	recorder := fixture.do(t, http.MethodPost, fmt.Sprintf("/api/categories/track/%d/", category.ID), nil, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload trackResponsePayload
	decodeBody(t, recorder, &payload)
	if !payload.Success || payload.Message != "Access tracked successfully" || payload.CategoryID != category.ID || payload.AccessCount != 1 {
		t.Fatalf("unexpected track payload %+v", payload)
	}
}

func TestBookListingPaginatesAndSearches(t *testing.T) {
	fixture := newServerFixture(t, fixtureOptions{})
	names := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		names = append(names, fmt.Sprintf("animal-%02d.png", i))
	}
	animals := fixture.category(t, "Farm Animals", names...)
	fixture.category(t, "Vehicles", "truck.png")

	recorder := fixture.do(t, http.MethodGet, "/api/categories/books/", nil, "")
	var first imagePagePayload
	decodeBody(t, recorder, &first)
	if first.Count != 26 || len(first.Results) != 20 {
		t.Fatalf("unexpected first page count=%d results=%d", first.Count, len(first.Results))
	}
	if first.Next == nil || *first.Next != "?page=2" || first.Previous != nil {
		t.Fatalf("unexpected first page links next=%v previous=%v", first.Next, first.Previous)
	}

	recorder = fixture.do(t, http.MethodGet, "/api/categories/books/?page=99", nil, "")
	var last imagePagePayload
	decodeBody(t, recorder, &last)
	if len(last.Results) != 6 || last.Next != nil || last.Previous == nil || *last.Previous != "?page=1" {
		t.Fatalf("expected clamped last page, got %+v", last)
	}

	recorder = fixture.do(t, http.MethodGet, "/api/categories/books/?search=VEHIC", nil, "")
	var searched imagePagePayload
	decodeBody(t, recorder, &searched)
	if searched.Count != 1 || !strings.HasSuffix(searched.Results[0].Image, "printables/truck.png") {
		t.Fatalf("unexpected search result %+v", searched)
	}

	recorder = fixture.do(t, http.MethodGet, fmt.Sprintf("/api/categories/books/?category=%d", animals.ID), nil, "")
	var filtered imagePagePayload
	decodeBody(t, recorder, &filtered)
	if filtered.Count != 25 {
		t.Fatalf("expected 25 images in category, got %d", filtered.Count)
	}

	recorder = fixture.do(t, http.MethodGet, "/api/categories/books/?category=abc", nil, "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric category, got %d", recorder.Code)
	}
}

func TestBookDetail(t *testing.T) {
	fixture := newServerFixture(t, fixtureOptions{})
	category := fixture.category(t, "Ocean", "whale.png")
	images, err := fixture.catalog.CategoryImages(t.Context(), category.ID)
	if err != nil {
		t.Fatalf("failed to load images: %v", err)
	}

	recorder := fixture.do(t, http.MethodGet, fmt.Sprintf("/api/categories/books/%d/", images[0].ID), nil, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload imagePayload
	decodeBody(t, recorder, &payload)
	if payload.Source != "https://example.com/whale.png" {
		t.Fatalf("unexpected source %s", payload.Source)
	}

	recorder = fixture.do(t, http.MethodGet, "/api/categories/books/404/", nil, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}
