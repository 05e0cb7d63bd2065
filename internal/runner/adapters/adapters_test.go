package adapters

import (
	"strings"
	"testing"

	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_CoversEveryJobType(t *testing.T) {
	covered := map[scanjob.JobType]bool{}
	for _, a := range All() {
		assert.NotEmpty(t, a.Name())
		for _, jt := range a.JobTypes() {
			covered[jt] = true
		}
	}
	for _, jt := range scanjob.AllJobTypes() {
		assert.True(t, covered[jt], "no adapter serves %s", jt)
	}
}

func TestSubfinder_Parse(t *testing.T) {
	raw := []byte("api.example.com\n*.dev.example.com\n\nnotahost\nwww.example.com\n")

	findings, err := (&Subfinder{}).Parse("example.com", raw)

	require.NoError(t, err)
	require.Len(t, findings, 3)
	assert.Equal(t, "api.example.com", findings[0].Value)
	// Wildcard prefix is stripped.
	assert.Equal(t, "dev.example.com", findings[1].Value)
	assert.Equal(t, finding.TypeSubdomain, findings[0].Type)
}

func TestSubfinder_Command(t *testing.T) {
	cfg := scanjob.DefaultSubdomainScanConfig()
	bin, args := (&Subfinder{}).Command("example.com", cfg)

	assert.Equal(t, "subfinder", bin)
	assert.Contains(t, args, "-d")
	assert.Contains(t, args, "example.com")
	assert.Contains(t, args, "-silent")
}

func TestAmass_Parse(t *testing.T) {
	raw := []byte("api.example.com\nmail.example.com (FQDN) --> a_record --> 1.2.3.4\n")

	findings, err := (&Amass{}).Parse("example.com", raw)

	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "api.example.com", findings[0].Value)
	// Relationship output keeps only the first column.
	assert.Equal(t, "mail.example.com", findings[1].Value)
}

func TestNmap_ParseGrepable(t *testing.T) {
	raw := []byte(`# Nmap 7.94 scan initiated
Host: 93.184.216.34 (example.com)	Status: Up
Host: 93.184.216.34 (example.com)	Ports: 80/open/tcp//http///, 443/open/tcp//https///, 22/filtered/tcp//ssh///
# Nmap done
`)

	findings, err := (&Nmap{}).Parse("example.com", raw)

	require.NoError(t, err)
	require.Len(t, findings, 2, "filtered ports are skipped")

	assert.Equal(t, finding.TypeOpenPort, findings[0].Type)
	assert.Equal(t, "example.com:80/tcp", findings[0].Value)
	assert.Equal(t, "example.com", findings[0].Attributes["host"])
	assert.Equal(t, "80", findings[0].Attributes["port"])
	assert.Equal(t, "tcp", findings[0].Attributes["protocol"])
	assert.Equal(t, "http", findings[0].Attributes["service"])
	assert.Equal(t, "https", findings[1].Attributes["service"])
}

func TestNmap_ParseWithoutReverseName(t *testing.T) {
	raw := []byte("Host: 10.0.0.5 ()\tPorts: 8080/open/tcp//http-proxy///\n")

	findings, err := (&Nmap{}).Parse("example.com", raw)

	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "10.0.0.5", findings[0].Attributes["host"])
}

func TestNmap_CommandPortSelection(t *testing.T) {
	cfg := scanjob.DefaultPortScanConfig()
	cfg.Ports = "80,443"
	_, args := (&Nmap{}).Command("example.com", cfg)
	assert.Contains(t, args, "-p")
	assert.Contains(t, args, "80,443")

	cfg = scanjob.DefaultPortScanConfig()
	cfg.TopPorts = 100
	_, args = (&Nmap{}).Command("example.com", cfg)
	assert.Contains(t, args, "--top-ports")
	assert.Contains(t, args, "100")
}

func TestNaabu_Parse(t *testing.T) {
	raw := []byte("example.com:80\nexample.com:443\nbogus line\n")

	findings, err := (&Naabu{}).Parse("example.com", raw)

	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "example.com:80/tcp", findings[0].Value)
	assert.Equal(t, "tcp", findings[0].Attributes["protocol"])
}

func TestFfuf_ParseNDJSON(t *testing.T) {
	raw := []byte(`ffuf banner line
{"url":"https://example.com/admin","status":403,"length":128,"words":12}
{"url":"https://example.com/api","status":200,"length":512,"words":40}
{"not a result":true}
`)

	findings, err := (&Ffuf{}).Parse("example.com", raw)

	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, finding.TypeURL, findings[0].Type)
	assert.Equal(t, "https://example.com/admin", findings[0].Value)
	assert.Equal(t, "403", findings[0].Attributes["status_code"])
	assert.Equal(t, "128", findings[0].Attributes["content_length"])
}

func TestFfuf_CommandWordlists(t *testing.T) {
	_, args := (&Ffuf{}).Command("example.com", scanjob.DefaultContentDiscoveryConfig())
	assert.Contains(t, args, defaultWordlist)
	assert.Contains(t, args, "-mc")

	_, args = (&Ffuf{}).Command("example.com", scanjob.DefaultAPIDiscoveryConfig())
	assert.Contains(t, args, apiWordlist)

	custom := scanjob.DefaultContentDiscoveryConfig()
	custom.Wordlist = "/opt/lists/big.txt"
	_, args = (&Ffuf{}).Command("example.com", custom)
	assert.Contains(t, args, "/opt/lists/big.txt")
}

func TestNuclei_ParseJSONL(t *testing.T) {
	raw := []byte(`{"template-id":"git-config","host":"https://example.com","matched-at":"https://example.com/.git/config","info":{"name":"Git Config Exposure","severity":"medium"}}
{"template-id":"cve-2023-1234","host":"https://example.com","matched-at":"https://example.com/","info":{"name":"RCE","severity":"critical"}}
`)

	findings, err := (&Nuclei{}).Parse("example.com", raw)

	require.NoError(t, err)
	require.Len(t, findings, 2)

	git := findings[0]
	assert.Equal(t, finding.TypeVulnerability, git.Type)
	assert.Equal(t, "Git Config Exposure", git.Value)
	assert.Equal(t, "git-config", git.Attributes["vulnerability"])
	assert.Equal(t, "https://example.com/.git/config", git.Attributes["location"])
	assert.Equal(t, "medium", git.Attributes["severity"])
	assert.False(t, git.Interesting)

	// High and critical findings are flagged.
	assert.True(t, findings[1].Interesting)
}

func TestHTTPX_Parse(t *testing.T) {
	raw := []byte(`{"input":"api.example.com","url":"https://api.example.com","host":"93.184.216.34","status_code":200,"title":"API","webserver":"nginx"}
{"url":"https://www.example.com","host":"www.example.com","status_code":301}
{}
`)

	findings, err := (&HTTPX{}).Parse("example.com", raw)

	require.NoError(t, err)
	require.Len(t, findings, 2)

	assert.Equal(t, finding.TypeLiveHost, findings[0].Type)
	assert.Equal(t, "api.example.com", findings[0].Value)
	assert.Equal(t, "200", findings[0].Attributes["status_code"])
	assert.Equal(t, "nginx", findings[0].Attributes["webserver"])
	// Falls back to host when input is absent.
	assert.Equal(t, "www.example.com", findings[1].Value)
}

func TestLinkFinder_Parse(t *testing.T) {
	raw := []byte("/api/v1/users\nhttps://cdn.example.com/app.js\n/static/main.js?v=2\n")

	findings, err := (&LinkFinder{}).Parse("example.com", raw)

	require.NoError(t, err)
	require.Len(t, findings, 3)

	// Relative endpoints resolve against the target.
	assert.Equal(t, "https://example.com/api/v1/users", findings[0].Value)
	assert.Equal(t, finding.TypeURL, findings[0].Type)

	assert.Equal(t, finding.TypeJSFile, findings[1].Type)
	assert.Equal(t, finding.TypeJSFile, findings[2].Type)
}

func TestGetJS_Parse(t *testing.T) {
	raw := []byte("https://example.com/app.js\nhttps://example.com/vendor.js\n")

	findings, err := (&GetJS{}).Parse("example.com", raw)

	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, finding.TypeJSFile, findings[0].Type)
	assert.Equal(t, "https://example.com/app.js", findings[0].Value)
}

func TestWaymore_Parse(t *testing.T) {
	raw := []byte("https://example.com/old-admin\nhttps://example.com/backup.zip\n")

	findings, err := (&Waymore{}).Parse("example.com", raw)

	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, finding.TypeURL, findings[0].Type)
	assert.Equal(t, "archive", findings[0].Attributes["source"])
}

func TestWaymore_APIDiscoveryFiltersToAPIPaths(t *testing.T) {
	raw := []byte(strings.Join([]string{
		"https://example.com/api/users",
		"https://example.com/blog/post-1",
		"https://example.com/V2/orders?id=1",
		"https://example.com/static/openapi.json",
		"https://example.com/graphql",
		"https://example.com/rest/items",
		"https://example.com/vendor/lib.js",
	}, "\n"))

	findings, err := (&Waymore{}).ParseWithConfig("example.com", scanjob.DefaultAPIDiscoveryConfig(), raw)

	require.NoError(t, err)
	values := make([]string, len(findings))
	for i, f := range findings {
		values[i] = f.Value
	}
	assert.Equal(t, []string{
		"https://example.com/api/users",
		"https://example.com/V2/orders?id=1",
		"https://example.com/static/openapi.json",
		"https://example.com/graphql",
		"https://example.com/rest/items",
	}, values)

	// Content discovery keeps the full archive dump.
	all, err := (&Waymore{}).ParseWithConfig("example.com", scanjob.DefaultContentDiscoveryConfig(), raw)
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

func TestAdapterEnablement(t *testing.T) {
	sub := scanjob.DefaultSubdomainScanConfig()
	sub.UseAmass = false
	assert.True(t, (&Subfinder{}).Enabled(sub))
	assert.False(t, (&Amass{}).Enabled(sub))

	// Config of a different job type never enables an adapter.
	assert.False(t, (&Nuclei{}).Enabled(sub))
	assert.False(t, (&HTTPX{}).Enabled(sub))
}
