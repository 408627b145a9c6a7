package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/nhatm/estate-ledger/internal/adapter/storage"
)

// Demo provisioning for local development: loads the property catalog, one
// governance proposal and a funded demo account. The ledger engine itself
// never seeds anything.

type seedProperty struct {
	id              string
	name            string
	location        string
	totalValue      string
	tokenPrice      string
	tokensAvailable int
	rentPerToken    string
	annualYield     string
	description     string
	imageURL        string
}

var properties = []seedProperty{
	{
		id: "amsterdam-canal-house", name: "Amsterdam Canal House",
		location: "Prinsengracht, Amsterdam", totalValue: "2500000",
		tokenPrice: "100", tokensAvailable: 25000, rentPerToken: "0.37", annualYield: "4.5",
		description: "A historic 17th-century canal house. Stable rental income from long-term tenants in a prime location.",
		imageURL:    "https://images.unsplash.com/photo-1582234038529-67f708945091?q=80&w=800",
	},
	{
		id: "rotterdam-penthouse", name: "Rotterdam Modern Penthouse",
		location: "Wijnhaven, Rotterdam", totalValue: "1200000",
		tokenPrice: "120", tokensAvailable: 10000, rentPerToken: "0.52", annualYield: "5.2",
		description: "Luxury penthouse in a new high-rise with panoramic city views. Poised for significant value appreciation.",
		imageURL:    "https://images.unsplash.com/photo-1560448204-e02f11c3d0e2?q=80&w=800",
	},
	{
		id: "utrecht-historic-loft", name: "Utrecht Historic Loft",
		location: "Oudegracht, Utrecht", totalValue: "750000",
		tokenPrice: "75", tokensAvailable: 10000, rentPerToken: "0.30", annualYield: "4.8",
		description: "Charming loft conversion in a former warehouse. Attracts high demand from young professionals.",
		imageURL:    "https://images.unsplash.com/photo-1613553422385-2313645a8a4f?q=80&w=800",
	},
	{
		id: "the-hague-residence", name: "The Hague Royal Residence",
		location: "Lange Voorhout, The Hague", totalValue: "4000000",
		tokenPrice: "200", tokensAvailable: 20000, rentPerToken: "0.68", annualYield: "4.1",
		description: "An elegant residential building in the diplomatic heart of The Hague. Premium asset offering security and prestige.",
		imageURL:    "https://images.unsplash.com/photo-1594488942095-3c115c54533a?q=80&w=800",
	},
}

func main() {
	accountID := flag.String("account", "demo-investor", "demo account id to create")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}
	dsn := getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/estateledger?parseTime=true")

	db, err := storage.NewDB(dsn)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()

	for _, p := range properties {
		_, err := db.Exec(`
			INSERT INTO properties
				(id, name, location, total_value, token_price, tokens_available,
				 monthly_rent_per_token, annual_yield, description, image_url)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE id = id`,
			p.id, p.name, p.location, mustDecimal(p.totalValue), mustDecimal(p.tokenPrice),
			p.tokensAvailable, mustDecimal(p.rentPerToken), mustDecimal(p.annualYield),
			p.description, p.imageURL)
		if err != nil {
			log.Fatalf("seed property %s: %v", p.id, err)
		}
	}
	log.Printf("seeded %d properties", len(properties))

	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM proposals`); err != nil {
		log.Fatalf("count proposals: %v", err)
	}
	if count == 0 {
		_, err := db.Exec(`
			INSERT INTO proposals
				(id, property_id, property_name, title, description, yes_votes, no_votes)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), "rotterdam-penthouse", "Rotterdam Modern Penthouse",
			"Approve new tenant for Penthouse Unit 10A?",
			"A corporate client has proposed a 2-year lease for unit 10A at 5% above the current market rate. The tenant is a highly-rated international firm.",
			1250, 120)
		if err != nil {
			log.Fatalf("seed proposal: %v", err)
		}
		log.Println("seeded 1 proposal")
	}

	_, err = db.Exec(`
		INSERT INTO accounts (id, display_name, kyc_status, cash_balance, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id`,
		*accountID, "Guest Investor", "verified", mustDecimal("100000"), time.Now().UTC())
	if err != nil {
		log.Fatalf("seed account: %v", err)
	}
	log.Printf("seeded account %s", *accountID)
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
