package vulkan

import (
	"encoding/binary"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

/**
 * @brief Device buffers of an uploaded geometry.
 */
type VulkanGeometry struct {
	VertexBuffer *VulkanBuffer
	IndexBuffer  *VulkanBuffer
	VertexCount  uint32
	IndexCount   uint32
}

func GeometryCreate(context *VulkanContext, vertices []byte, vertexCount uint32, indices []uint32) (_ *VulkanGeometry, err error) {
	geometry := &VulkanGeometry{VertexCount: vertexCount, IndexCount: uint32(len(indices))}
	defer func() {
		if err != nil {
			geometry.Destroy(context)
		}
	}()

	usage, hostVisible := usageFlags(metadata.BufferUsageVertex)
	if geometry.VertexBuffer, err = BufferCreate(context, uint64(len(vertices)), usage, hostVisible); err != nil {
		return nil, err
	}
	if err := geometry.VertexBuffer.Write(context, 0, vertices); err != nil {
		return nil, err
	}

	if len(indices) > 0 {
		data := make([]byte, 4*len(indices))
		for i, index := range indices {
			binary.LittleEndian.PutUint32(data[i*4:], index)
		}
		usage, hostVisible = usageFlags(metadata.BufferUsageIndex)
		if geometry.IndexBuffer, err = BufferCreate(context, uint64(len(data)), usage, hostVisible); err != nil {
			return nil, err
		}
		if err := geometry.IndexBuffer.Write(context, 0, data); err != nil {
			return nil, err
		}
	}
	return geometry, nil
}

// Draw binds the buffers and records an indexed draw, or a plain one when
// the geometry has no indices.
func (g *VulkanGeometry) Draw(commandBuffer *VulkanCommandBuffer, instanceCount uint32) {
	vk.CmdBindVertexBuffers(commandBuffer.Handle, 0, 1, []vk.Buffer{g.VertexBuffer.Handle}, []vk.DeviceSize{0})
	if g.IndexBuffer == nil {
		vk.CmdDraw(commandBuffer.Handle, g.VertexCount, instanceCount, 0, 0)
		return
	}
	vk.CmdBindIndexBuffer(commandBuffer.Handle, g.IndexBuffer.Handle, 0, vk.IndexTypeUint32)
	vk.CmdDrawIndexed(commandBuffer.Handle, g.IndexCount, instanceCount, 0, 0, 0)
}

func (g *VulkanGeometry) Destroy(context *VulkanContext) {
	if g.VertexBuffer != nil {
		g.VertexBuffer.Destroy(context)
		g.VertexBuffer = nil
	}
	if g.IndexBuffer != nil {
		g.IndexBuffer.Destroy(context)
		g.IndexBuffer = nil
	}
}
