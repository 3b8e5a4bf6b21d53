package hostkeys_test

import (
	"context"
	"net/http"

	"github.com/CircleCI-Public/ssh-deploy-keys/hostkeys"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

const ed25519Key = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIOMqqnkVzrm0SdG6UOoqKLsabgH5C9okWi0dh2l9GKJl"

var _ = Describe("GitHub host keys", func() {
	var (
		server *ghttp.Server
		client *hostkeys.Client
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		client, err = hostkeys.New(server.URL())
		Expect(err).ShouldNot(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("fetches the ssh_keys list", func() {
		server.AppendHandlers(
			ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/meta"),
				ghttp.VerifyHeaderKV("Accept", "application/vnd.github+json"),
				ghttp.RespondWith(http.StatusOK, `{"verifiable_password_authentication": false, "ssh_keys": ["`+ed25519Key+`", "ssh-rsa AAAA"]}`,
					http.Header{"Content-Type": []string{"application/json"}}),
			),
		)

		keys, err := client.Fetch(context.Background())
		Expect(err).ShouldNot(HaveOccurred())
		Expect(keys).To(Equal([]string{ed25519Key, "ssh-rsa AAAA"}))
	})

	It("reports HTTP failures", func() {
		server.AppendHandlers(ghttp.RespondWith(http.StatusForbidden, `{"message": "API rate limit exceeded"}`))

		_, err := client.Fetch(context.Background())
		Expect(err).To(MatchError("response 403 (Forbidden)"))
	})

	It("reports malformed documents", func() {
		server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `not json`))

		_, err := client.Fetch(context.Background())
		Expect(err).To(MatchError(ContainSubstring("decoding GitHub meta response")))
	})

	It("renders known_hosts lines and drops unparseable keys", func() {
		lines, invalid := hostkeys.KnownHostsLines([]string{ed25519Key, "ssh-rsa AAAA"})
		Expect(lines).To(Equal([]string{"github.com " + ed25519Key}))
		Expect(invalid).To(Equal([]string{"ssh-rsa AAAA"}))
	})
})
