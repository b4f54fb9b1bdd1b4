package domain

type RealmType string

const (
	RealmUrban      RealmType = "urban"
	RealmWilderness RealmType = "wilderness"
	RealmDungeon    RealmType = "dungeon"
)

func (t RealmType) Valid() bool {
	return t == RealmUrban || t == RealmWilderness || t == RealmDungeon
}

// Realm is a named region of the world. Locations join a realm by carrying
// the realm:<key> tag; the realm's name feeds terrain inference for
// anchors that have no terrain of their own.
type Realm struct {
	Key       string
	Name      string
	RealmType RealmType
	Scope     string
}
