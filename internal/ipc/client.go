package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon runtime snapshot.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Replay.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Save queues a clip save.
func (c *Client) Save(req SaveRequest) (*SaveResponse, error) {
	var resp SaveResponse
	if err := c.client.Call("Replay.Save", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PauseCapture suspends segment recording.
func (c *Client) PauseCapture() (*PauseCaptureResponse, error) {
	var resp PauseCaptureResponse
	if err := c.client.Call("Replay.PauseCapture", PauseCaptureRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResumeCapture resumes recording after a pause.
func (c *Client) ResumeCapture() (*ResumeCaptureResponse, error) {
	var resp ResumeCaptureResponse
	if err := c.client.Call("Replay.ResumeCapture", ResumeCaptureRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RestartCapture forces a capture process restart.
func (c *Client) RestartCapture() (*RestartCaptureResponse, error) {
	var resp RestartCaptureResponse
	if err := c.client.Call("Replay.RestartCapture", RestartCaptureRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Clips returns recent catalog entries.
func (c *Client) Clips(limit int) (*ClipsResponse, error) {
	var resp ClipsResponse
	if err := c.client.Call("Replay.Clips", ClipsRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Replay.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Replay.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Replay.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
