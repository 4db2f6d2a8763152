package injection

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/cloakbench/api/schemas"
)

func testRecord() schemas.FingerprintRecord {
	return schemas.FingerprintRecord{
		SessionID: "s1",
		Profile: schemas.DeviceProfile{
			DeviceName:      "iPhone 14",
			Viewport:        schemas.Viewport{Width: 390, Height: 844},
			CanvasSeed:      8453,
			AudioSeed:       2286,
			BatteryLevel:    0.65,
			BatteryCharging: false,
		},
		UserAgent:           "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X)",
		NavigatorPlatform:   "iPhone",
		HardwareConcurrency: 6,
		DeviceMemory:        6,
		MaxTouchPoints:      5,
		Language:            "en-US",
		Languages:           []string{"en-US", "en"},
		WebGLVendor:         "Apple Inc.",
		WebGLRenderer:       "Apple GPU",
		ScreenWidth:         390,
		ScreenHeight:        844,
		Timezone:            "America/Los_Angeles",
		MaskWebRTC:          true,
		ProxyAddress:        "203.0.113.7",
	}
}

// vmHarness sets up a goja runtime with just enough browser surface for the
// patch program to take effect: a window global, a bare navigator and screen,
// and an RTCPeerConnection stub whose fire method dispatches events the way a
// page's ICE negotiation would.
const vmHarness = `
var window = this;
var navigator = { getBattery: function() { return null; } };
var screen = {};
function Event(type) { this.type = type; }
function RTCIceCandidate(init) {
	this.candidate = init.candidate;
	this.sdpMid = init.sdpMid;
	this.sdpMLineIndex = init.sdpMLineIndex;
	this.usernameFragment = init.usernameFragment;
}
function RTCPeerConnection(config) { this._listeners = []; }
RTCPeerConnection.prototype.addEventListener = function(type, fn) {
	this._listeners.push({ type: type, fn: fn });
};
RTCPeerConnection.prototype.fire = function(ev) {
	for (var i = 0; i < this._listeners.length; i++) {
		if (this._listeners[i].type === ev.type) { this._listeners[i].fn(ev); }
	}
};
window.RTCPeerConnection = RTCPeerConnection;
`

func runInVM(t *testing.T, script string) *goja.Runtime {
	t.Helper()
	vm := goja.New()
	_, err := vm.RunString(vmHarness)
	require.NoError(t, err)
	_, err = vm.RunString(script)
	require.NoError(t, err, "patch program failed in VM")
	return vm
}

func evalString(t *testing.T, vm *goja.Runtime, expr string) string {
	t.Helper()
	v, err := vm.RunString(expr)
	require.NoError(t, err)
	return v.String()
}

func TestBuild_Deterministic(t *testing.T) {
	b := NewBuilder(zaptest.NewLogger(t))
	rec := testRecord()
	assert.Equal(t, b.Build(rec), b.Build(rec))
}

func TestBuild_Validates(t *testing.T) {
	b := NewBuilder(zaptest.NewLogger(t))
	require.NoError(t, b.Validate(b.Build(testRecord())))
}

func TestValidate_RejectsBrokenScript(t *testing.T) {
	b := NewBuilder(zaptest.NewLogger(t))
	assert.Error(t, b.Validate("function ( {"))
}

func TestBuild_OmitsOptionalBlocks(t *testing.T) {
	b := NewBuilder(zaptest.NewLogger(t))

	rec := testRecord()
	rec.WebGLVendor = ""
	rec.ProxyAddress = ""
	script := b.Build(rec)

	assert.NotContains(t, script, "getParameter")
	assert.NotContains(t, script, "RTCPeerConnection")
	require.NoError(t, b.Validate(script))
}

func TestBuild_NavigatorAndScreenOverrides(t *testing.T) {
	b := NewBuilder(zaptest.NewLogger(t))
	vm := runInVM(t, b.Build(testRecord()))

	assert.Equal(t, testRecord().UserAgent, evalString(t, vm, "navigator.userAgent"))
	assert.Equal(t, "iPhone", evalString(t, vm, "navigator.platform"))
	assert.Equal(t, "6", evalString(t, vm, "navigator.hardwareConcurrency"))
	assert.Equal(t, "en-US,en", evalString(t, vm, "navigator.languages.join(',')"))
	assert.Equal(t, "390", evalString(t, vm, "screen.width"))
	assert.Equal(t, "844", evalString(t, vm, "screen.availHeight"))
	assert.Equal(t, "undefined", evalString(t, vm, "typeof navigator.webdriver"))
}

func TestBuild_WebGLBlockPresent(t *testing.T) {
	b := NewBuilder(zaptest.NewLogger(t))
	script := b.Build(testRecord())

	for _, param := range []string{"37445", "37446", "7936", "7937"} {
		assert.Contains(t, script, param)
	}
	assert.Contains(t, script, "WebGL2RenderingContext")
}

const privateCandidate = "candidate:842163049 1 udp 1677729535 192.168.1.42 54321 typ srflx raddr 0.0.0.0 rport 0"
const publicCandidate = "candidate:842163049 1 udp 1677729535 198.51.100.23 54321 typ srflx raddr 0.0.0.0 rport 0"

func fireCandidate(t *testing.T, vm *goja.Runtime, line string) {
	t.Helper()
	_, err := vm.RunString(fmt.Sprintf(`pc.fire({ type: 'icecandidate', candidate: { candidate: %q, sdpMid: '0', sdpMLineIndex: 0 } });`, line))
	require.NoError(t, err)
}

func setupPeerConnection(t *testing.T, vm *goja.Runtime) {
	t.Helper()
	_, err := vm.RunString(`
var seenProp = [];
var seenListener = [];
var pc = new RTCPeerConnection({});
pc.onicecandidate = function(ev) { seenProp.push(ev.candidate ? ev.candidate.candidate : null); };
pc.addEventListener('icecandidate', function(ev) { seenListener.push(ev.candidate ? ev.candidate.candidate : null); });
`)
	require.NoError(t, err)
}

func TestBuild_MasksPrivateCandidateOnBothPaths(t *testing.T) {
	b := NewBuilder(zaptest.NewLogger(t))
	vm := runInVM(t, b.Build(testRecord()))
	setupPeerConnection(t, vm)

	fireCandidate(t, vm, privateCandidate)

	want := strings.Replace(privateCandidate, "192.168.1.42", "203.0.113.7", 1)
	assert.Equal(t, want, evalString(t, vm, "seenProp[0]"))
	assert.Equal(t, want, evalString(t, vm, "seenListener[0]"))
	// Port, protocol, priority and type survive the rewrite.
	assert.Contains(t, want, "54321")
	assert.Contains(t, want, "udp")
	assert.Contains(t, want, "typ srflx")
}

func TestBuild_RewrittenCandidateStructureIntact(t *testing.T) {
	b := NewBuilder(zaptest.NewLogger(t))
	vm := runInVM(t, b.Build(testRecord()))
	setupPeerConnection(t, vm)

	fireCandidate(t, vm, privateCandidate)

	got := evalString(t, vm, "seenProp[0]")
	fields := strings.Fields(got)
	wantFields := strings.Fields(privateCandidate)

	// The rewrite swaps exactly one token. A proxy value carrying a port
	// would split the address slot and shift every following field.
	require.Len(t, fields, len(wantFields))
	assert.Equal(t, "203.0.113.7", fields[4])
	assert.Equal(t, wantFields[3], fields[3]) // priority
	assert.Equal(t, wantFields[5], fields[5]) // port
	assert.Equal(t, wantFields[7], fields[7]) // candidate type
}

func TestBuild_PublicCandidateUntouched(t *testing.T) {
	b := NewBuilder(zaptest.NewLogger(t))
	vm := runInVM(t, b.Build(testRecord()))
	setupPeerConnection(t, vm)

	fireCandidate(t, vm, publicCandidate)

	assert.Equal(t, publicCandidate, evalString(t, vm, "seenProp[0]"))
	assert.Equal(t, publicCandidate, evalString(t, vm, "seenListener[0]"))
}

func TestBuild_MasksLoopbackAndLinkLocal(t *testing.T) {
	b := NewBuilder(zaptest.NewLogger(t))

	for _, addr := range []string{"10.0.0.5", "172.16.9.1", "172.31.255.254", "127.0.0.1", "169.254.7.7"} {
		vm := runInVM(t, b.Build(testRecord()))
		setupPeerConnection(t, vm)
		fireCandidate(t, vm, "candidate:1 1 udp 2122260223 "+addr+" 9000 typ host")
		got := evalString(t, vm, "seenProp[0]")
		assert.Contains(t, got, "203.0.113.7", "address %s should be rewritten", addr)
		assert.NotContains(t, got, addr)
	}
}

func TestBuild_LeavesBorderlinePublicRanges(t *testing.T) {
	b := NewBuilder(zaptest.NewLogger(t))

	// 172.32.x.x sits just outside the 172.16/12 private block.
	for _, addr := range []string{"172.32.0.1", "11.0.0.1", "192.169.1.1"} {
		vm := runInVM(t, b.Build(testRecord()))
		setupPeerConnection(t, vm)
		line := "candidate:1 1 udp 2122260223 " + addr + " 9000 typ host"
		fireCandidate(t, vm, line)
		assert.Equal(t, line, evalString(t, vm, "seenProp[0]"))
	}
}

func TestBuild_NullCandidatePassesThrough(t *testing.T) {
	b := NewBuilder(zaptest.NewLogger(t))
	vm := runInVM(t, b.Build(testRecord()))
	setupPeerConnection(t, vm)

	// End-of-gathering events carry no candidate.
	_, err := vm.RunString(`pc.fire({ type: 'icecandidate', candidate: null });`)
	require.NoError(t, err)

	assert.Equal(t, "null", evalString(t, vm, "String(seenProp[0])"))
}
