package domain

import "time"

// CategoryPokemon is the TCGplayer category id for Pokémon cards.
const CategoryPokemon = 3

// Group represents a card set.
// Corresponds to groups table in PostgreSQL.
type Group struct {
	GroupID    int64     // PRIMARY KEY, TCGplayer group id
	Name       string    // set name
	CategoryID int       // TCGplayer category
	ModifiedOn time.Time // last refresh time
}

// Product represents a catalog item (a single card printing).
// Corresponds to products table in PostgreSQL.
type Product struct {
	ProductID   int64  // PRIMARY KEY, TCGplayer product id
	CategoryID  int    // TCGplayer category
	GroupID     int64  // FK to groups
	Name        string // display name
	CleanName   string // normalized name
	URL         string // product page
	ImageURL    string // product image
	ImageCount  int    // number of images
	SubTypeName string // price variant (Normal, Holofoil, ...), may be empty
	ModifiedOn  time.Time

	// Card attributes copied verbatim from the catalog feed.
	ExtCardType    string
	ExtHP          string
	ExtNumber      string
	ExtRarity      string
	ExtResistance  string
	ExtRetreatCost string
	ExtStage       string
	ExtUPC         string
	ExtWeakness    string
	ExtCardText    string
	ExtAttack1     string
	ExtAttack2     string
	ExtAttack3     string
	ExtAttack4     string
}

// CatalogItem is the identifier tuple the trend engine pages through.
type CatalogItem struct {
	ProductID   int64
	SubTypeName string
}
