package firestore

import "testing"

func TestNormaliseLegacyBookingLiftsScalarDecorator(t *testing.T) {
	doc := bookingDocument{
		ID:                   "bk-legacy",
		Date:                 "2025-06-01",
		LegacyDecoratorID:    "dec-1",
		LegacyDecoratorName:  "Ana",
		LegacyDecoratorEmail: " One@Example.com ",
	}
	normaliseLegacyBooking(&doc)

	if len(doc.DecoratorIDs) != 1 || doc.DecoratorIDs[0] != "dec-1" {
		t.Fatalf("expected lifted decorator id, got %v", doc.DecoratorIDs)
	}
	if len(doc.DecoratorEmails) != 1 || doc.DecoratorEmails[0] != "one@example.com" {
		t.Fatalf("expected lifted lower-cased email, got %v", doc.DecoratorEmails)
	}
	if doc.LegacyDecoratorID != "" || doc.LegacyDecoratorName != "" || doc.LegacyDecoratorEmail != "" {
		t.Fatalf("expected legacy scalars cleared, got %+v", doc)
	}
	if doc.Date != "2025-06-01T00:00:00.000Z" {
		t.Fatalf("expected canonical date, got %q", doc.Date)
	}

	// A write of the decoded booking carries the arrays, so array-contains filters match it.
	written := fromDomainBooking(toDomainBooking(doc))
	if len(written.DecoratorEmails) != 1 || written.DecoratorEmails[0] != "one@example.com" {
		t.Fatalf("expected persisted decoratorEmails, got %v", written.DecoratorEmails)
	}
	if written.LegacyDecoratorEmail != "" || written.Date != doc.Date {
		t.Fatalf("unexpected persisted document %+v", written)
	}
}

func TestNormaliseLegacyBookingKeepsCurrentRecords(t *testing.T) {
	doc := bookingDocument{
		Date:            "2025-06-01T09:30:00.000Z",
		DecoratorIDs:    []string{"dec-2"},
		DecoratorNames:  []string{"Ben"},
		DecoratorEmails: []string{"two@example.com"},
		// Stale scalar next to populated arrays must not override them.
		LegacyDecoratorEmail: "old@example.com",
	}
	normaliseLegacyBooking(&doc)

	if doc.DecoratorEmails[0] != "two@example.com" || len(doc.DecoratorEmails) != 1 {
		t.Fatalf("arrays must win over legacy scalar, got %v", doc.DecoratorEmails)
	}
	if doc.Date != "2025-06-01T09:30:00.000Z" {
		t.Fatalf("canonical date changed to %q", doc.Date)
	}

	odd := bookingDocument{Date: "next tuesday"}
	normaliseLegacyBooking(&odd)
	if odd.Date != "next tuesday" {
		t.Fatalf("unparseable date must be left as stored, got %q", odd.Date)
	}
}
