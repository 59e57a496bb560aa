//go:build ignore

// seed_properties.go: standalone script that inserts sample listings and
// stores their ideality scores.
//
// Usage:
//
//	go run scripts/seed_properties.go -db postgres://localhost/ideality -count 200
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/MikeSquared-Agency/Ideality/internal/scoring"
	"github.com/MikeSquared-Agency/Ideality/internal/store"
)

var propertyTypes = []string{"house", "condo", "townhouse", "apartment", "loft"}

// Neighborhood centers listings are scattered around.
var centers = []struct {
	name     string
	lat, lng float64
}{
	{"Downtown", 40.7128, -74.0060},
	{"Riverside", 40.7306, -73.9866},
	{"Hillcrest", 40.6782, -73.9442},
	{"Lakeshore", 40.7484, -73.9857},
}

func main() {
	dbURL := flag.String("db", "postgres://localhost:5432/ideality?sslmode=disable", "Postgres connection URL")
	count := flag.Int("count", 100, "number of listings to create")
	seed := flag.Int64("seed", 42, "random seed")
	year := flag.Int("year", time.Now().Year(), "evaluation year for stored scores")
	dryRun := flag.Bool("dry-run", false, "print listings without inserting")
	flag.Parse()

	sc, err := scoring.NewScorer(scoring.DefaultNormalization(), scoring.FixedYear(*year), nil)
	if err != nil {
		log.Fatalf("scorer: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	props := make([]*store.Property, *count)
	for i := range props {
		p := randomProperty(rng, i)
		score := sc.Score(p.Attributes(), scoring.WeightOverrides{}).Score
		p.IdealityScore, p.ScoredYear = &score, year
		props[i] = p
	}

	if *dryRun {
		for i, p := range props {
			fmt.Printf("[%d] %s (%s, $%.0f, %d sqft, %d bd/%.1f ba, built %d) score=%d\n",
				i+1, p.Title, p.Type, p.Price, p.Sqft, p.Beds, p.Baths, p.YearBuilt, *p.IdealityScore)
		}
		return
	}

	ctx := context.Background()
	db, err := store.NewPostgresStore(ctx, *dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}

	created, skipped := 0, 0
	for _, p := range props {
		if err := db.CreateProperty(ctx, p); err != nil {
			log.Printf("skip %q: %v", p.Title, err)
			skipped++
			continue
		}
		created++
	}

	log.Printf("done: %d created, %d skipped", created, skipped)
}

func randomProperty(rng *rand.Rand, i int) *store.Property {
	c := centers[rng.Intn(len(centers))]
	typ := propertyTypes[rng.Intn(len(propertyTypes))]
	beds := 1 + rng.Intn(5)
	sqft := beds*350 + rng.Intn(900)

	return &store.Property{
		Title:          fmt.Sprintf("%d-bed %s in %s #%d", beds, typ, c.name, i+1),
		Type:           typ,
		Price:          math.Round((150000+float64(sqft)*(180+rng.Float64()*420))/1000) * 1000,
		Sqft:           sqft,
		YearBuilt:      1920 + rng.Intn(105),
		Beds:           beds,
		Baths:          0.5 * float64(1+rng.Intn(beds*2+1)),
		Lat:            c.lat + (rng.Float64()-0.5)*0.08,
		Lng:            c.lng + (rng.Float64()-0.5)*0.08,
		LocationScore:  float64(40 + rng.Intn(61)),
		SafetyScore:    float64(30 + rng.Intn(71)),
		SchoolScore:    float64(20 + rng.Intn(81)),
		CommuteMinutes: float64(5 + rng.Intn(80)),
	}
}
