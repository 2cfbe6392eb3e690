package questionnaire

import "testing"

func TestCategoryBoundaries(t *testing.T) {
	cases := map[int]Category{
		0:  CategoryPersonality,
		4:  CategoryPersonality,
		5:  CategoryExpertise,
		8:  CategoryExpertise,
		9:  CategoryBoundaries,
		11: CategoryBoundaries,
		12: CategorySamples,
		14: CategorySamples,
	}
	for index, want := range cases {
		if got := CategoryOf(index); got != want {
			t.Errorf("CategoryOf(%d) = %s, want %s", index, got, want)
		}
	}
}

func TestSectionsFullSeed(t *testing.T) {
	p, e, b, s := Sections(Seed())
	if len(p) != 5 || len(e) != 4 || len(b) != 3 || len(s) != 3 {
		t.Fatalf("unexpected section sizes: %d %d %d %d", len(p), len(e), len(b), len(s))
	}
	if e[0].ID != 6 || b[0].ID != 10 || s[0].ID != 13 {
		t.Fatalf("sections start at wrong questions: %d %d %d", e[0].ID, b[0].ID, s[0].ID)
	}
}

func TestSectionsClampShortInput(t *testing.T) {
	p, e, b, s := Sections(Seed()[:7])
	if len(p) != 5 || len(e) != 2 || len(b) != 0 || len(s) != 0 {
		t.Fatalf("unexpected section sizes: %d %d %d %d", len(p), len(e), len(b), len(s))
	}
}

func TestSeedReturnsFreshCopy(t *testing.T) {
	first := Seed()
	first[0].Answer = "changed"
	if Seed()[0].Answer != "" {
		t.Fatal("Seed must not share state between calls")
	}
}
