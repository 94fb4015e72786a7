package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csgoStatus = `hostname: Reed Community #1
version : 1.38.7.9/13879 1575/8853 secure  [G:1:3681232]
udp/ip  : 0.0.0.0:27015  (public ip: 203.0.113.10)
players : 2 humans, 1 bots (20/0 max) (not hibernating)

# userid name uniqueid connected ping loss state rate adr
#  2 1 "Alice" STEAM_1:1:111 05:12 34 0 active 196608 198.51.100.7:27005
#  3 2 "Bob the \"Builder\"" STEAM_1:0:222 1:02:33 81 0 active 786432 192.0.2.44:27005
# 4 "Rex" BOT active 0
#end
`

func TestParseScenario(t *testing.T) {
	players := Parse(`#  2 1 "Alice" STEAM_0:1:111 05:12 34`)
	require.Len(t, players, 1)
	assert.Equal(t, Player{
		UserID:    2,
		Name:      "Alice",
		Identity:  "STEAM_0:1:111",
		Connected: "05:12",
		Ping:      34,
	}, players[0])
}

func TestParseStatusOutput(t *testing.T) {
	players := Parse(csgoStatus)
	require.Len(t, players, 3)

	assert.Equal(t, int32(2), players[0].UserID)
	assert.Equal(t, "Alice", players[0].Name)
	assert.Equal(t, "STEAM_1:1:111", players[0].Identity)
	assert.Equal(t, int32(34), players[0].Ping)

	assert.Equal(t, int32(3), players[1].UserID)
	assert.Equal(t, "1:02:33", players[1].Connected)

	// bots have no slot column
	assert.Equal(t, int32(4), players[2].UserID)
	assert.Equal(t, "Rex", players[2].Name)
	assert.Equal(t, "BOT", players[2].Identity)
	assert.Equal(t, "active", players[2].Connected)
	assert.Equal(t, int32(0), players[2].Ping)
}

func TestParseIsRepeatable(t *testing.T) {
	first := Parse(csgoStatus)
	second := Parse(csgoStatus)
	assert.Equal(t, first, second)
}

func TestParseMalformedLines(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Player
	}{
		{"empty", "", nil},
		{"banner only", "hostname: test\nmap     : de_dust2\n", nil},
		{"header row", "# userid name uniqueid connected ping loss state rate adr", nil},
		{"unquoted name", "#  2 1 Alice STEAM_0:1:1 05:12 34", nil},
		{"missing ping", `#  2 1 "Alice" STEAM_0:1:1 05:12`, nil},
		{"row not at line start", `say # 2 1 "Alice" STEAM_0:1:1 05:12 34`, nil},
		{
			"userid overflow",
			`#  99999999999 1 "Alice" STEAM_0:1:1 05:12 34`,
			[]Player{{UserID: -1, Name: "Alice", Identity: "STEAM_0:1:1", Connected: "05:12", Ping: 34}},
		},
		{
			"ping overflow",
			`#  5 1 "Alice" STEAM_0:1:1 05:12 99999999999`,
			[]Player{{UserID: 5, Name: "Alice", Identity: "STEAM_0:1:1", Connected: "05:12", Ping: 0}},
		},
		{
			"crlf",
			"junk\r\n#  7 \"Carol\" STEAM_0:0:9 00:10 12\r\n",
			[]Player{{UserID: 7, Name: "Carol", Identity: "STEAM_0:0:9", Connected: "00:10", Ping: 12}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, Parse(tt.body))
			})
		})
	}
}

func TestFind(t *testing.T) {
	t.Run("name identity and ip", func(t *testing.T) {
		got := Find(csgoStatus, 2)
		assert.Equal(t, Target{
			Name:     "Alice",
			Identity: "STEAM_1:1:111",
			IP:       "198.51.100.7:27005",
			Strategy: "name-identity-ip",
		}, got)
		assert.True(t, got.Found())
	})

	t.Run("name and identity only", func(t *testing.T) {
		got := Find(csgoStatus, 4)
		assert.Equal(t, "Rex", got.Name)
		assert.Equal(t, "BOT", got.Identity)
		assert.Equal(t, UnknownIP, got.IP)
		assert.Equal(t, "name-identity", got.Strategy)
	})

	t.Run("absent user", func(t *testing.T) {
		got := Find(csgoStatus, 42)
		assert.Equal(t, Unknown(), got)
		assert.False(t, got.Found())
	})

	t.Run("id prefix is not a match", func(t *testing.T) {
		got := Find("#  22 1 \"Dan\" STEAM_0:0:1 00:01 5", 2)
		assert.False(t, got.Found())
	})

	t.Run("line with id but no fields", func(t *testing.T) {
		got := Find("# 9 garbage", 9)
		assert.Equal(t, Unknown(), got)
	})

	t.Run("negative id", func(t *testing.T) {
		assert.Equal(t, Unknown(), Find(`#  99999999999 1 "A" X 0 0`, -1))
	})
}

func TestEmptyNameRow(t *testing.T) {
	body := "# userid name uniqueid connected ping loss state rate adr\n" +
		`#  6 3 "" STEAM_1:0:77 00:42 61 0 active 196608 203.0.113.9:27005`

	players := Parse(body)
	require.Len(t, players, 1)
	assert.Equal(t, Player{UserID: 6, Name: "", Identity: "STEAM_1:0:77", Connected: "00:42", Ping: 61}, players[0])

	got := Find(body, 6)
	assert.Equal(t, Target{
		Name:     "",
		Identity: "STEAM_1:0:77",
		IP:       "203.0.113.9:27005",
		Strategy: "name-identity-ip",
	}, got)
	assert.True(t, got.Found())
}

func TestParseAndFindAgree(t *testing.T) {
	body := csgoStatus + "chat: # 9 1 \"Mallory\" STEAM_1:0:5 00:01 5\n"
	for _, p := range Parse(body) {
		got := Find(body, p.UserID)
		assert.True(t, got.Found(), p.Name)
		assert.Equal(t, p.Name, got.Name)
		assert.Equal(t, p.Identity, got.Identity)
	}
	assert.False(t, Find(body, 9).Found())
}

func TestStrategiesIndependently(t *testing.T) {
	line := `#  2 1 "Alice" STEAM_1:1:111 05:12 34 0 active 196608 198.51.100.7:27005`
	bare := `#  2 1 "Alice" STEAM_1:1:111 05:12 34`

	list := Strategies()
	require.Len(t, list, 2)
	assert.Equal(t, "name-identity-ip", list[0].Name)
	assert.Equal(t, "name-identity", list[1].Name)

	got, ok := list[0].Extract(line)
	require.True(t, ok)
	assert.Equal(t, "198.51.100.7:27005", got.IP)

	_, ok = list[0].Extract(bare)
	assert.False(t, ok)

	got, ok = list[1].Extract(bare)
	require.True(t, ok)
	assert.Equal(t, "STEAM_1:1:111", got.Identity)
	assert.Equal(t, UnknownIP, got.IP)
}
