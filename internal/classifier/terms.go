package classifier

// DefaultTrustedLabel is the author label the ingestion path attaches to posts
// from the deployment's own users.
const DefaultTrustedLabel = "cannect"

// Phrases that almost never appear outside cannabis conversation. One match is
// enough evidence unless the surrounding context is strongly unrelated.
var defaultHighConfidence = []string{
	"cannabis",
	"marijuana",
	"dispensary|dispensaries",
	"budtender|budtenders",
	"cannabinoid|cannabinoids",
	"terpenes",
	"pre-roll|pre-rolls|preroll|prerolls",
	"live resin",
	"live rosin",
	"dab rig",
	"wake and bake",
	"medical marijuana",
	"recreational cannabis",
	"indica",
	"sativa",
	"thca",
	"delta-8|delta 8",
	"cannabis cup",
	"#cannabis",
	"#marijuana",
	"#weed",
	"#420",
	"#mmj",
	"#stoner",
	"#cannabiscommunity",
	"#thc",
	"#cbd",
	"#dispensary",
}

// Strain names. Most of them collide with food, music, films or astronomy, so
// they need a non-negative context score to count.
var defaultEntities = []string{
	"og kush",
	"northern lights",
	"blue dream",
	"sour diesel",
	"girl scout cookies",
	"gorilla glue",
	"pineapple express",
	"white widow",
	"jack herer",
	"green crack",
	"purple haze",
	"granddaddy purple",
	"gelato",
	"wedding cake",
	"ice cream cake",
	"zkittlez",
	"runtz",
	"trainwreck",
	"durban poison",
	"skywalker og",
	"bubba kush",
	"lemon haze",
	"maui wowie",
	"chemdawg",
	"ak-47",
	"apple fritter",
	"biscotti",
}

// Topic-adjacent words with everyday meanings. Two distinct ones are needed;
// inflections of one word are grouped so they count once.
var defaultMedium = []string{
	"weed",
	"pot",
	"bud|buds",
	"joint|joints",
	"blunt|blunts",
	"bong",
	"hybrid",
	"strain|strains",
	"thc",
	"cbd",
	"grow",
	"harvest",
	"stoned",
	"smoke|smoking",
	"kush",
	"hash",
	"flower",
	"dab",
	"edible|edibles",
	"gummies",
	"vape",
	"munchies",
	"baked",
	"toke",
	"ganja",
	"herb",
	"nug|nugs",
	"420",
	"stash",
	"sesh",
	"rosin",
}

// Words that confirm the topic when they appear next to an ambiguous match.
var defaultPositiveSignals = []string{
	"thc",
	"cbd",
	"strain|strains",
	"terps",
	"smoked",
	"smoking",
	"toke|toking",
	"stoned",
	"high af",
	"dab|dabs",
	"bong",
	"grinder",
	"rolling papers",
	"420",
	"trichomes",
	"cultivar",
	"grow tent",
	"flower",
	"munchies",
	"sesh",
	"nugs",
}

// Known false-positive domains. Each pattern counts once per post regardless
// of how many times it matches.
var defaultNegativeSignals = []WeightedPattern{
	{
		Name:    "automotive",
		Pattern: `\b(suv|sedan|hatchback|minivan|prius|toyota|honda|hyundai|tata|ford|tesla|cars?|vehicles?|mpg|dealership|horsepower)\b`,
		Weight:  -4,
	},
	{
		Name:    "astronomy",
		Pattern: `\b(aurora|borealis|australis|stargazing|solar storm|geomagnetic|night sky|telescope)\b`,
		Weight:  -4,
	},
	{
		Name:    "gardening",
		Pattern: `\b(garden|gardening|lawn|mulch|tomato(es)?|vegetables?|herbicide|dandelions?|weeding|allotment)\b`,
		Weight:  -3,
	},
	{
		Name:    "idioms",
		Pattern: `\b(high school|pot ?luck|pot roast|pot ?holes?|crock ?pot|melting pot|joint (venture|statement|pain|session|account)|strained? (muscle|relationship|relations|ties)|under strain)\b`,
		Weight:  -3,
	},
	{
		Name:    "medicine",
		Pattern: `\b(virus|viral|bacteria|bacterial|covid|flu|influenza|vaccines?|variant|pandemic|pathogen)\b`,
		Weight:  -4,
	},
	{
		Name:    "baking",
		Pattern: `\b(recipe|bakery|baking|dessert|ice cream|frosting|bride|groom|sprinkles|gelateria)\b`,
		Weight:  -2,
	},
	{
		Name:    "film",
		Pattern: `\b(movie|film|seth rogen|trailer|netflix|box office|cinema)\b`,
		Weight:  -3,
	},
	{
		Name:    "music",
		Pattern: `\b(jimi|hendrix|album|guitar solo|cover band|vinyl|setlist)\b`,
		Weight:  -2,
	},
	{
		Name:    "beer",
		Pattern: `\b(bud light|budweiser|anheuser)\b`,
		Weight:  -4,
	},
	{
		Name:    "sports",
		Pattern: `\b(touchdown|playoffs?|quarterback|nfl|nba|mlb|nhl|innings?)\b`,
		Weight:  -2,
	},
}
